package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/willy-peters/SmartPOS/api/middleware"
	"github.com/willy-peters/SmartPOS/api/responses"
	"github.com/willy-peters/SmartPOS/api/validators"
	"github.com/willy-peters/SmartPOS/internal/sales"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
	"github.com/willy-peters/SmartPOS/pkg/logger"
	"github.com/willy-peters/SmartPOS/pkg/pagination"
)

// Committed sales are immutable; refunds are a separate business process.
const (
	saleModifyMessage = "Sales cannot be modified after creation"
	saleDeleteMessage = "Sales cannot be deleted. Please process a refund instead."
)

type createSaleRequest struct {
	Items []saleLineRequest `json:"items" validate:"required,min=1,dive"`
}

type saleLineRequest struct {
	ProductID     uuid.UUID        `json:"productId" validate:"required"`
	Quantity      int              `json:"quantity" validate:"required,gt=0"`
	PriceOverride *decimal.Decimal `json:"priceOverride,omitempty"`
}

func (r createSaleRequest) toInput() sales.CreateInput {
	lines := make([]sales.LineInput, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, sales.LineInput{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			PriceOverride: item.PriceOverride,
		})
	}
	return sales.CreateInput{Lines: lines}
}

// SaleCreate runs the checkout transaction for the authenticated cashier.
func SaleCreate(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sale service unavailable"))
			return
		}

		var body createSaleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		sale, err := svc.Create(r.Context(), identity, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, sale)
	}
}

// SaleList pages through sales. Cashiers only ever see their own rows.
func SaleList(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sale service unavailable"))
			return
		}

		input, err := parseSaleListInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		result, err := svc.List(r.Context(), identity, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// SaleGet returns one sale with its lines.
func SaleGet(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sale service unavailable"))
			return
		}

		id, err := pathUUID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		sale, err := svc.Get(r.Context(), identity, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, sale)
	}
}

// SalesToday summarizes the register's current day.
func SalesToday(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sale service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		result, err := svc.Today(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// SalesStatistics aggregates revenue over a trailing window. Admin only.
func SalesStatistics(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sale service unavailable"))
			return
		}

		// 0 lets the service apply its configured default window.
		days, err := validators.ParseQueryInt(r, "days", 0, 0, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		result, err := svc.Statistics(r.Context(), identity, days)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// SaleImmutable answers every mutation attempt against a committed sale.
func SaleImmutable(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		message := saleModifyMessage
		if r.Method == http.MethodDelete {
			message = saleDeleteMessage
		}
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMethodNotAllowed, message))
	}
}

func parseSaleListInput(r *http.Request) (sales.ListInput, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
	if err != nil {
		return sales.ListInput{}, err
	}

	filters := sales.ListFilters{
		TransactionID: validators.SanitizeString(r.URL.Query().Get("transaction_id"), maxQueryLength),
	}

	dateFrom, err := validators.ParseQueryDate(r, "date_from")
	if err != nil {
		return sales.ListInput{}, err
	}
	filters.DateFrom = dateFrom

	dateTo, err := validators.ParseQueryDate(r, "date_to")
	if err != nil {
		return sales.ListInput{}, err
	}
	if dateTo != nil {
		// date_to names a calendar day; include all of it.
		end := dateTo.AddDate(0, 0, 1)
		filters.DateTo = &end
	}

	date, err := validators.ParseQueryDate(r, "date")
	if err != nil {
		return sales.ListInput{}, err
	}
	filters.Date = date

	cashierID, err := validators.ParseQueryUUID(r, "cashier_id")
	if err != nil {
		return sales.ListInput{}, err
	}
	filters.CashierID = cashierID

	minTotal, err := validators.ParseQueryDecimal(r, "min_total")
	if err != nil {
		return sales.ListInput{}, err
	}
	filters.MinTotal = minTotal

	maxTotal, err := validators.ParseQueryDecimal(r, "max_total")
	if err != nil {
		return sales.ListInput{}, err
	}
	filters.MaxTotal = maxTotal

	return sales.ListInput{
		Filters: filters,
		Pagination: pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		},
	}, nil
}
