package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/willy-peters/SmartPOS/internal/access"
	"github.com/willy-peters/SmartPOS/pkg/db"
	"github.com/willy-peters/SmartPOS/pkg/db/models"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog and stock management operations.
type Service interface {
	CreateProduct(ctx context.Context, identity access.Identity, input CreateProductInput) (*ProductDTO, error)
	GetProduct(ctx context.Context, identity access.Identity, productID uuid.UUID) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, identity access.Identity, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, identity access.Identity, productID uuid.UUID) error
	ListProducts(ctx context.Context, identity access.Identity, input ListProductsInput) (*ProductListResult, error)
	LowStock(ctx context.Context, identity access.Identity) (*LowStockResult, error)
	IncreaseStock(ctx context.Context, identity access.Identity, productID uuid.UUID, qty int) (*ProductDTO, error)
	DecreaseStock(ctx context.Context, identity access.Identity, productID uuid.UUID, qty int) (*ProductDTO, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name              string
	SKU               string
	Category          string
	Price             decimal.Decimal
	QuantityInStock   int
	LowStockThreshold *int
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name              *string
	SKU               *string
	Category          *string
	Price             *decimal.Decimal
	LowStockThreshold *int
}

const defaultLowStockThreshold = 5

const skuConflictMessage = "product with this SKU already exists"

type service struct {
	repo *Repository
	tx   txRunner
}

// NewService constructs the product service.
func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// CreateProduct validates and inserts a new catalog entry.
func (s *service) CreateProduct(ctx context.Context, identity access.Identity, input CreateProductInput) (*ProductDTO, error) {
	if err := access.Authorize(identity, access.ActionCreateProduct, access.Resource{}); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	sku, err := normalizeSKU(input.SKU)
	if err != nil {
		return nil, err
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if input.QuantityInStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity_in_stock cannot be negative")
	}
	threshold := defaultLowStockThreshold
	if input.LowStockThreshold != nil {
		threshold = *input.LowStockThreshold
	}
	if err := validateLowStockThreshold(threshold); err != nil {
		return nil, err
	}
	if err := s.ensureSKUAvailable(ctx, sku); err != nil {
		return nil, err
	}

	product := &models.Product{
		ID:                uuid.New(),
		Name:              name,
		SKU:               sku,
		Category:          strings.TrimSpace(input.Category),
		Price:             input.Price,
		QuantityInStock:   input.QuantityInStock,
		LowStockThreshold: threshold,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		if db.IsUniqueViolation(err, "idx_products_sku") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, skuConflictMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
	}
	return NewProductDTO(created), nil
}

// GetProduct loads a single catalog entry.
func (s *service) GetProduct(ctx context.Context, identity access.Identity, productID uuid.UUID) (*ProductDTO, error) {
	if err := access.Authorize(identity, access.ActionReadProduct, access.Resource{}); err != nil {
		return nil, err
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(product), nil
}

// UpdateProduct applies the provided fields to an existing catalog entry.
func (s *service) UpdateProduct(ctx context.Context, identity access.Identity, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if err := access.Authorize(identity, access.ActionUpdateProduct, access.Resource{}); err != nil {
		return nil, err
	}

	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
	}
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return nil, err
		}
	}
	if input.LowStockThreshold != nil {
		if err := validateLowStockThreshold(*input.LowStockThreshold); err != nil {
			return nil, err
		}
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if input.SKU != nil {
		sku, err := normalizeSKU(*input.SKU)
		if err != nil {
			return nil, err
		}
		if sku != product.SKU {
			if err := s.ensureSKUAvailable(ctx, sku); err != nil {
				return nil, err
			}
		}
		product.SKU = sku
	}

	applyUpdateToProduct(product, input)

	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		if db.IsUniqueViolation(err, "idx_products_sku") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, skuConflictMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
	}
	return NewProductDTO(updated), nil
}

// DeleteProduct removes a catalog entry unless recorded sales reference it.
func (s *service) DeleteProduct(ctx context.Context, identity access.Identity, productID uuid.UUID) error {
	if err := access.Authorize(identity, access.ActionDeleteProduct, access.Resource{}); err != nil {
		return err
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return err
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		references, err := txRepo.CountSaleReferences(ctx, product.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count sale references")
		}
		if references > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "product is referenced by recorded sales and cannot be deleted")
		}

		return txRepo.DeleteProduct(ctx, product.ID)
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

// ListProducts returns one filtered catalog page.
func (s *service) ListProducts(ctx context.Context, identity access.Identity, input ListProductsInput) (*ProductListResult, error) {
	if err := access.Authorize(identity, access.ActionReadProduct, access.Resource{}); err != nil {
		return nil, err
	}

	rows, nextCursor, err := s.repo.ListProducts(ctx, productListQuery{
		Pagination: input.Pagination,
		Filters:    input.Filters,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}

	return &ProductListResult{
		Products:   NewProductDTOs(rows),
		NextCursor: nextCursor,
	}, nil
}

// LowStock returns the admin restock report.
func (s *service) LowStock(ctx context.Context, identity access.Identity) (*LowStockResult, error) {
	if err := access.Authorize(identity, access.ActionReadLowStock, access.Resource{}); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list low stock")
	}

	return &LowStockResult{
		Count:    len(rows),
		Products: NewProductDTOs(rows),
	}, nil
}

// IncreaseStock adds received inventory to a product.
func (s *service) IncreaseStock(ctx context.Context, identity access.Identity, productID uuid.UUID, qty int) (*ProductDTO, error) {
	if err := access.Authorize(identity, access.ActionAdjustStock, access.Resource{}); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	affected, err := s.repo.AddStock(ctx, productID, qty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: increase stock")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(product), nil
}

// DecreaseStock removes inventory and fails closed on shortfall.
func (s *service) DecreaseStock(ctx context.Context, identity access.Identity, productID uuid.UUID, qty int) (*ProductDTO, error) {
	if err := access.Authorize(identity, access.ActionAdjustStock, access.Resource{}); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	affected, err := s.repo.RemoveStock(ctx, productID, qty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: decrease stock")
	}
	if affected == 0 {
		product, err := s.loadProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(
			pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", product.Name, product.QuantityInStock, qty),
		)
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(product), nil
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	return product, nil
}

func (s *service) ensureSKUAvailable(ctx context.Context, sku string) error {
	_, err := s.repo.FindBySKU(ctx, sku)
	if err == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, skuConflictMessage)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check sku")
}

func normalizeSKU(raw string) (string, error) {
	sku := strings.ToUpper(strings.TrimSpace(raw))
	if sku == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	return sku, nil
}

func validatePrice(price decimal.Decimal) error {
	if price.LessThanOrEqual(decimal.Zero) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	}
	return nil
}

func validateLowStockThreshold(value int) error {
	if value < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "low_stock_threshold cannot be negative")
	}
	return nil
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Category != nil {
		product.Category = strings.TrimSpace(*input.Category)
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.LowStockThreshold != nil {
		product.LowStockThreshold = *input.LowStockThreshold
	}
}
