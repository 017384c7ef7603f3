package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/willy-peters/SmartPOS/internal/access"
	product "github.com/willy-peters/SmartPOS/internal/products"
	"github.com/willy-peters/SmartPOS/internal/sales"
	"github.com/willy-peters/SmartPOS/internal/users"
	"github.com/willy-peters/SmartPOS/pkg/config"
	"github.com/willy-peters/SmartPOS/pkg/db"
	"github.com/willy-peters/SmartPOS/pkg/db/models"
	"github.com/willy-peters/SmartPOS/pkg/enums"
	"github.com/willy-peters/SmartPOS/pkg/logger"
	"github.com/willy-peters/SmartPOS/pkg/security"
)

const maxSeedLineItems = 5

type userFixture struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      enums.Role
}

type productFixture struct {
	Name      string
	SKU       string
	Category  string
	Price     string
	Stock     int
	Threshold int
}

var userFixtures = []userFixture{
	{Username: "admin", Email: "admin@smartpos.local", Password: "admin123", FirstName: "Store", LastName: "Admin", Role: enums.RoleAdmin},
	{Username: "cashier1", Email: "cashier1@smartpos.local", Password: "cashier123", FirstName: "John", LastName: "Doe", Role: enums.RoleCashier},
	{Username: "cashier2", Email: "cashier2@smartpos.local", Password: "cashier123", FirstName: "Jane", LastName: "Smith", Role: enums.RoleCashier},
}

var productFixtures = []productFixture{
	{Name: "Espresso", SKU: "BEV-ESP-001", Category: "beverages", Price: "2.50", Stock: 500, Threshold: 50},
	{Name: "Cappuccino", SKU: "BEV-CAP-001", Category: "beverages", Price: "3.80", Stock: 400, Threshold: 40},
	{Name: "Cold Brew 330ml", SKU: "BEV-CLB-330", Category: "beverages", Price: "4.20", Stock: 240, Threshold: 24},
	{Name: "Orange Juice 250ml", SKU: "BEV-OJU-250", Category: "beverages", Price: "3.10", Stock: 180, Threshold: 20},
	{Name: "Butter Croissant", SKU: "BAK-CRO-001", Category: "bakery", Price: "2.90", Stock: 120, Threshold: 15},
	{Name: "Cinnamon Roll", SKU: "BAK-CIN-001", Category: "bakery", Price: "3.40", Stock: 90, Threshold: 10},
	{Name: "Sourdough Loaf", SKU: "BAK-SOU-001", Category: "bakery", Price: "6.50", Stock: 40, Threshold: 8},
	{Name: "Granola Bar", SKU: "SNK-GRA-001", Category: "snacks", Price: "1.80", Stock: 300, Threshold: 30},
	{Name: "Trail Mix 150g", SKU: "SNK-TRL-150", Category: "snacks", Price: "4.90", Stock: 150, Threshold: 15},
	{Name: "Dark Chocolate 70%", SKU: "SNK-CHO-070", Category: "snacks", Price: "3.60", Stock: 200, Threshold: 20},
	{Name: "Reusable Cup", SKU: "MRC-CUP-001", Category: "merch", Price: "12.00", Stock: 60, Threshold: 5},
	{Name: "Gift Card Sleeve", SKU: "MRC-GFT-001", Category: "merch", Price: "1.00", Stock: 500, Threshold: 25},
}

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	saleCount := flag.Int("sales", 0, "number of randomized historical sales to create")
	saleDays := flag.Int("days", 30, "spread generated sales over this many past days")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx = logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database client", err)
		}
	}()

	admin, cashiers, err := ensureUsers(ctx, logg, dbClient, cfg.Password)
	requireResource(ctx, logg, "user fixtures", err)

	err = ensureProducts(ctx, logg, dbClient, access.Identity{ID: admin.ID, Role: admin.Role})
	requireResource(ctx, logg, "product fixtures", err)

	if *saleCount > 0 {
		if *saleDays <= 0 {
			*saleDays = 1
		}
		err = generateSales(ctx, logg, dbClient, cfg.Sales, cashiers, *saleCount, *saleDays)
		requireResource(ctx, logg, "sale generation", err)
	}

	logg.Info(ctx, "seed complete")
}

// ensureUsers creates any missing fixture accounts and returns the admin plus
// the cashiers available for sale generation.
func ensureUsers(ctx context.Context, logg *logger.Logger, dbClient *db.Client, passwordCfg config.PasswordConfig) (*models.User, []models.User, error) {
	repo := users.NewRepository(dbClient.DB())

	var admin *models.User
	var cashiers []models.User
	for _, fixture := range userFixtures {
		user, err := repo.FindByUsername(ctx, fixture.Username)
		switch {
		case err == nil:
			logg.Info(logg.WithField(ctx, "username", fixture.Username), "user already present")
		case errors.Is(err, gorm.ErrRecordNotFound):
			hash, hashErr := security.HashPassword(fixture.Password, passwordCfg)
			if hashErr != nil {
				return nil, nil, fmt.Errorf("hash password for %s: %w", fixture.Username, hashErr)
			}
			user = &models.User{
				ID:           uuid.New(),
				Username:     fixture.Username,
				Email:        fixture.Email,
				PasswordHash: hash,
				FirstName:    fixture.FirstName,
				LastName:     fixture.LastName,
				Role:         fixture.Role,
				IsActive:     true,
			}
			if err := repo.CreateUser(ctx, user); err != nil {
				return nil, nil, fmt.Errorf("create user %s: %w", fixture.Username, err)
			}
			logg.Info(logg.WithField(ctx, "username", fixture.Username), "user created")
		default:
			return nil, nil, fmt.Errorf("look up user %s: %w", fixture.Username, err)
		}

		if user.Role == enums.RoleAdmin && admin == nil {
			admin = user
		}
		if user.Role == enums.RoleCashier {
			cashiers = append(cashiers, *user)
		}
	}
	if admin == nil {
		return nil, nil, fmt.Errorf("no admin account among fixtures")
	}
	return admin, cashiers, nil
}

// ensureProducts creates any missing catalog fixtures through the product
// service so the usual validation applies.
func ensureProducts(ctx context.Context, logg *logger.Logger, dbClient *db.Client, admin access.Identity) error {
	repo := product.NewRepository(dbClient.DB())
	svc, err := product.NewService(repo, dbClient)
	if err != nil {
		return err
	}

	for _, fixture := range productFixtures {
		_, err := repo.FindBySKU(ctx, fixture.SKU)
		if err == nil {
			logg.Info(logg.WithField(ctx, "sku", fixture.SKU), "product already present")
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("look up product %s: %w", fixture.SKU, err)
		}

		threshold := fixture.Threshold
		_, err = svc.CreateProduct(ctx, admin, product.CreateProductInput{
			Name:              fixture.Name,
			SKU:               fixture.SKU,
			Category:          fixture.Category,
			Price:             decimal.RequireFromString(fixture.Price),
			QuantityInStock:   fixture.Stock,
			LowStockThreshold: &threshold,
		})
		if err != nil {
			return fmt.Errorf("create product %s: %w", fixture.SKU, err)
		}
		logg.Info(logg.WithField(ctx, "sku", fixture.SKU), "product created")
	}
	return nil
}

// generateSales creates count randomized sales through the sale engine and
// backdates each record over the past days. Individual failures are collected
// and reported together; they do not abort the run.
func generateSales(ctx context.Context, logg *logger.Logger, dbClient *db.Client, salesCfg config.SalesConfig, cashiers []models.User, count, days int) error {
	if len(cashiers) == 0 {
		return fmt.Errorf("no cashier accounts available")
	}

	svc, err := sales.NewService(dbClient, sales.NewRepository(dbClient.DB()), nil, nil, salesCfg)
	if err != nil {
		return err
	}

	var catalog []models.Product
	if err := dbClient.DB().WithContext(ctx).Order("sku").Find(&catalog).Error; err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	// Track remaining stock locally so generated quantities never exceed
	// what the engine will find in the row.
	remaining := make(map[uuid.UUID]int, len(catalog))
	for _, p := range catalog {
		remaining[p.ID] = p.QuantityInStock
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now().UTC()

	var saleErrs error
	created := 0
	for i := 0; i < count; i++ {
		lines := randomLines(rng, catalog, remaining)
		if len(lines) == 0 {
			logg.Warn(ctx, "catalog exhausted, stopping sale generation early")
			break
		}

		cashier := cashiers[rng.Intn(len(cashiers))]
		identity := access.Identity{ID: cashier.ID, Role: cashier.Role}

		dto, err := svc.Create(ctx, identity, sales.CreateInput{Lines: lines})
		if err != nil {
			saleErrs = multierr.Append(saleErrs, fmt.Errorf("sale %d: %w", i+1, err))
			continue
		}
		for _, line := range lines {
			remaining[line.ProductID] -= line.Quantity
		}

		// The engine stamps sale_date with now; rewrite it to a random
		// moment in the requested window so reports have history.
		when := now.Add(-time.Duration(rng.Int63n(int64(days) * int64(24*time.Hour))))
		err = dbClient.DB().WithContext(ctx).
			Model(&models.Sale{}).
			Where("id = ?", dto.ID).
			Update("sale_date", when).Error
		if err != nil {
			saleErrs = multierr.Append(saleErrs, fmt.Errorf("backdate sale %s: %w", dto.TransactionID, err))
			continue
		}
		created++
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"requested": count,
		"created":   created,
		"days":      days,
	}), "sale generation finished")

	if saleErrs != nil {
		failures := multierr.Errors(saleErrs)
		logg.Error(logg.WithField(ctx, "failed", len(failures)), "some sales were not seeded", saleErrs)
	}
	return nil
}

// randomLines picks 1-5 distinct in-stock products with quantities capped by
// the locally tracked stock. Returns nil when nothing is left to sell.
func randomLines(rng *rand.Rand, catalog []models.Product, remaining map[uuid.UUID]int) []sales.LineInput {
	inStock := make([]models.Product, 0, len(catalog))
	for _, p := range catalog {
		if remaining[p.ID] > 0 {
			inStock = append(inStock, p)
		}
	}
	if len(inStock) == 0 {
		return nil
	}

	rng.Shuffle(len(inStock), func(i, j int) { inStock[i], inStock[j] = inStock[j], inStock[i] })

	lineCount := 1 + rng.Intn(maxSeedLineItems)
	if lineCount > len(inStock) {
		lineCount = len(inStock)
	}

	lines := make([]sales.LineInput, 0, lineCount)
	for _, p := range inStock[:lineCount] {
		maxQty := remaining[p.ID]
		if maxQty > maxSeedLineItems {
			maxQty = maxSeedLineItems
		}
		lines = append(lines, sales.LineInput{
			ProductID: p.ID,
			Quantity:  1 + rng.Intn(maxQty),
		})
	}
	return lines
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
