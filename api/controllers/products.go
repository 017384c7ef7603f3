package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/willy-peters/SmartPOS/api/middleware"
	"github.com/willy-peters/SmartPOS/api/responses"
	"github.com/willy-peters/SmartPOS/api/validators"
	product "github.com/willy-peters/SmartPOS/internal/products"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
	"github.com/willy-peters/SmartPOS/pkg/logger"
	"github.com/willy-peters/SmartPOS/pkg/pagination"
)

type createProductRequest struct {
	Name              string          `json:"name" validate:"required"`
	SKU               string          `json:"sku" validate:"required"`
	Category          string          `json:"category,omitempty"`
	Price             decimal.Decimal `json:"price" validate:"required"`
	QuantityInStock   int             `json:"quantity_in_stock" validate:"min=0"`
	LowStockThreshold *int            `json:"low_stock_threshold,omitempty" validate:"omitempty,min=0"`
}

type updateProductRequest struct {
	Name              *string          `json:"name,omitempty"`
	SKU               *string          `json:"sku,omitempty"`
	Category          *string          `json:"category,omitempty"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	LowStockThreshold *int             `json:"low_stock_threshold,omitempty" validate:"omitempty,min=0"`
}

type adjustStockRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// ProductCreate adds a catalog entry.
func ProductCreate(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		created, err := svc.CreateProduct(r.Context(), identity, product.CreateProductInput{
			Name:              body.Name,
			SKU:               body.SKU,
			Category:          body.Category,
			Price:             body.Price,
			QuantityInStock:   body.QuantityInStock,
			LowStockThreshold: body.LowStockThreshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ProductList pages through the catalog with optional filters.
func ProductList(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		input, err := parseProductListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		result, err := svc.ListProducts(r.Context(), identity, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ProductGet returns one catalog entry.
func ProductGet(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		dto, err := svc.GetProduct(r.Context(), identity, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dto)
	}
}

// ProductUpdate applies a partial update to a catalog entry. Stock moves
// through the dedicated adjustment endpoints, never through PATCH.
func ProductUpdate(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		dto, err := svc.UpdateProduct(r.Context(), identity, id, product.UpdateProductInput{
			Name:              body.Name,
			SKU:               body.SKU,
			Category:          body.Category,
			Price:             body.Price,
			LowStockThreshold: body.LowStockThreshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dto)
	}
}

// ProductDelete removes a catalog entry that has never been sold.
func ProductDelete(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		if err := svc.DeleteProduct(r.Context(), identity, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ProductLowStock returns the restock report.
func ProductLowStock(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		result, err := svc.LowStock(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ProductIncreaseStock receives new inventory for a product.
func ProductIncreaseStock(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return adjustStock(svc, logg, svcIncrease)
}

// ProductDecreaseStock writes off inventory, bounded by the current stock.
func ProductDecreaseStock(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return adjustStock(svc, logg, svcDecrease)
}

type stockDirection int

const (
	svcIncrease stockDirection = iota
	svcDecrease
)

func adjustStock(svc product.Service, logg *logger.Logger, direction stockDirection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body adjustStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		var dto *product.ProductDTO
		if direction == svcIncrease {
			dto, err = svc.IncreaseStock(r.Context(), identity, id, body.Quantity)
		} else {
			dto, err = svc.DecreaseStock(r.Context(), identity, id, body.Quantity)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dto)
	}
}

func parseProductListInput(r *http.Request) (product.ListProductsInput, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
	if err != nil {
		return product.ListProductsInput{}, err
	}

	filters := product.ProductListFilters{
		Query: validators.SanitizeString(r.URL.Query().Get("q"), maxQueryLength),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		filters.Category = &raw
	}

	priceMin, err := validators.ParseQueryDecimal(r, "price_min")
	if err != nil {
		return product.ListProductsInput{}, err
	}
	filters.PriceMin = priceMin

	priceMax, err := validators.ParseQueryDecimal(r, "price_max")
	if err != nil {
		return product.ListProductsInput{}, err
	}
	filters.PriceMax = priceMax

	lowStock, err := validators.ParseQueryBool(r, "low_stock")
	if err != nil {
		return product.ListProductsInput{}, err
	}
	filters.LowStock = lowStock

	return product.ListProductsInput{
		Filters: filters,
		Pagination: pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		},
	}, nil
}
