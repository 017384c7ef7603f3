// Package reservation implements the in-transaction inventory take: lock,
// re-validate, decrement. It is only correct when called inside the sale
// engine's transaction; callers own commit and rollback.
package reservation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/willy-peters/SmartPOS/pkg/db"
	"github.com/willy-peters/SmartPOS/pkg/db/models"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
)

// Request asks to take Quantity units of a product. Requests for the same
// product accumulate before stock is checked.
type Request struct {
	ProductID uuid.UUID
	Quantity  int
}

// Reserve locks the requested product rows and decrements their stock.
//
// Rows are locked FOR UPDATE in ascending product-id order so two
// transactions touching the same products in different line orders cannot
// deadlock. On Postgres the lock wait is bounded by lockTimeout
// (transaction-local); a timeout surfaces as retryable contention. Any
// shortfall fails the whole call — the caller's rollback undoes every
// decrement already staged.
//
// The returned map holds the locked rows as they were before the decrement,
// keyed by product id, so callers can snapshot prices from post-lock state.
func Reserve(ctx context.Context, tx *gorm.DB, lockTimeout time.Duration, requests []Request) (map[uuid.UUID]models.Product, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reservation requires a transaction")
	}
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no products requested")
	}

	needed := make(map[uuid.UUID]int, len(requests))
	for _, request := range requests {
		if request.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if request.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		needed[request.ProductID] += request.Quantity
	}

	ids := make([]uuid.UUID, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	onPostgres := tx.Dialector.Name() == "postgres"
	if onPostgres && lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())
		if err := tx.WithContext(ctx).Exec(stmt).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set lock timeout")
		}
	}

	locked := make(map[uuid.UUID]models.Product, len(ids))
	for _, id := range ids {
		q := tx.WithContext(ctx)
		if onPostgres {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var product models.Product
		if err := q.First(&product, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", id))
			}
			if db.IsLockNotAvailable(err) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeContention, err, "inventory row lock timeout")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock product row")
		}

		qty := needed[id]
		if product.QuantityInStock < qty {
			return nil, pkgerrors.New(
				pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", product.Name, product.QuantityInStock, qty),
			)
		}

		// Conditional so stock can never go negative even if this function
		// is called outside a lock-holding transaction.
		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND quantity_in_stock >= ?", id, qty).
			Update("quantity_in_stock", gorm.Expr("quantity_in_stock - ?", qty))
		if res.Error != nil {
			if db.IsLockNotAvailable(res.Error) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeContention, res.Error, "inventory row lock timeout")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
		}
		if res.RowsAffected == 0 {
			return nil, pkgerrors.New(
				pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", product.Name, product.QuantityInStock, qty),
			)
		}

		locked[id] = product
	}

	return locked, nil
}
