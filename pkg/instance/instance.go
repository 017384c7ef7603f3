package instance

import "github.com/willy-peters/SmartPOS/pkg/env"

// GetID returns the identifier this process reports in logs. Container
// platforms set HOSTNAME; local runs fall back to a fixed name.
func GetID() string {
	return env.Get("HOSTNAME", "local")
}
