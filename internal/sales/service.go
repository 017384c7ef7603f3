package sales

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/willy-peters/SmartPOS/internal/access"
	"github.com/willy-peters/SmartPOS/internal/sales/reservation"
	"github.com/willy-peters/SmartPOS/pkg/config"
	"github.com/willy-peters/SmartPOS/pkg/db"
	"github.com/willy-peters/SmartPOS/pkg/db/models"
	"github.com/willy-peters/SmartPOS/pkg/enums"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
	"github.com/willy-peters/SmartPOS/pkg/metrics"
)

// transactionIDAttempts bounds how many receipt numbers Create draws before
// giving up on a collision streak.
const transactionIDAttempts = 2

const topCashierLimit = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.Request) (map[uuid.UUID]models.Product, error)
}

// inventoryReserver adapts the reservation package to the runner interface,
// carrying the configured lock timeout.
type inventoryReserver struct {
	lockTimeout time.Duration
}

func (i inventoryReserver) Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.Request) (map[uuid.UUID]models.Product, error) {
	return reservation.Reserve(ctx, tx, i.lockTimeout, requests)
}

// Service records and reads sales. Creation is all-or-nothing: every line
// item is stock-checked under row locks inside one transaction, and any
// failure leaves inventory untouched.
type Service interface {
	Create(ctx context.Context, identity access.Identity, input CreateInput) (*SaleDTO, error)
	Get(ctx context.Context, identity access.Identity, id uuid.UUID) (*SaleDTO, error)
	List(ctx context.Context, identity access.Identity, input ListInput) (*SaleListResult, error)
	Today(ctx context.Context, identity access.Identity) (*TodayResult, error)
	Statistics(ctx context.Context, identity access.Identity, periodDays int) (*StatisticsResult, error)
}

type service struct {
	tx          txRunner
	repo        *Repository
	reservation reservationRunner
	metrics     *metrics.SaleMetrics
	cfg         config.SalesConfig
}

// NewService wires the sale engine. A nil reserver falls back to the real
// inventory reservation; a nil metrics handle disables instrumentation.
func NewService(tx txRunner, repo *Repository, reserver reservationRunner, saleMetrics *metrics.SaleMetrics, cfg config.SalesConfig) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("sales service requires a transaction runner")
	}
	if repo == nil {
		return nil, fmt.Errorf("sales service requires a repository")
	}
	if cfg.MaxLineItems <= 0 {
		cfg.MaxLineItems = 100
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 3 * time.Second
	}
	if cfg.StatisticsDefaultDays <= 0 {
		cfg.StatisticsDefaultDays = 30
	}
	if cfg.StatisticsMaxDays <= 0 {
		cfg.StatisticsMaxDays = 365
	}
	if reserver == nil {
		reserver = inventoryReserver{lockTimeout: cfg.LockTimeout}
	}
	return &service{
		tx:          tx,
		repo:        repo,
		reservation: reserver,
		metrics:     saleMetrics,
		cfg:         cfg,
	}, nil
}

func (s *service) Create(ctx context.Context, identity access.Identity, input CreateInput) (*SaleDTO, error) {
	if err := access.Authorize(identity, access.ActionCreateSale, access.Resource{}); err != nil {
		return nil, err
	}
	if err := validateLines(input.Lines, s.cfg.MaxLineItems); err != nil {
		s.metrics.IncFailed("validation")
		return nil, err
	}

	start := time.Now()
	var record *models.Sale
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		requests := make([]reservation.Request, 0, len(input.Lines))
		for _, line := range input.Lines {
			requests = append(requests, reservation.Request{ProductID: line.ProductID, Quantity: line.Quantity})
		}
		products, err := s.reservation.Reserve(ctx, tx, requests)
		if err != nil {
			return err
		}

		items := make([]models.SaleItem, 0, len(input.Lines))
		total := decimal.Zero
		for _, line := range input.Lines {
			product := products[line.ProductID]
			price := product.Price
			if line.PriceOverride != nil {
				price = *line.PriceOverride
			}
			items = append(items, models.SaleItem{
				ID:          uuid.New(),
				ProductID:   line.ProductID,
				Quantity:    line.Quantity,
				PriceAtSale: price,
			})
			total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		transactionID, err := issueTransactionID(ctx, repo)
		if err != nil {
			return err
		}

		sale := &models.Sale{
			ID:            uuid.New(),
			TransactionID: transactionID,
			SaleDate:      time.Now().UTC(),
			CashierID:     identity.ID,
			TotalAmount:   total,
			Items:         items,
		}
		if err := repo.InsertSale(ctx, sale); err != nil {
			if db.IsUniqueViolation(err, "idx_sales_transaction_id") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "transaction id already recorded")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to record sale")
		}
		record = sale
		return nil
	})
	if err != nil {
		s.metrics.ObserveDuration("failure", time.Since(start))
		s.metrics.IncFailed(failureReason(err))
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sale creation failed")
	}
	s.metrics.ObserveDuration("success", time.Since(start))
	s.metrics.IncCreated()

	full, err := s.repo.FindByID(ctx, record.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load recorded sale")
	}
	return NewSaleDTO(full), nil
}

func (s *service) Get(ctx context.Context, identity access.Identity, id uuid.UUID) (*SaleDTO, error) {
	if err := access.Authorize(identity, access.ActionReadSale, access.Resource{}); err != nil {
		return nil, err
	}

	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load sale")
	}
	// Cashiers only see their own sales; anything else reads as absent.
	if identity.Role != enums.RoleAdmin && sale.CashierID != identity.ID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	return NewSaleDTO(sale), nil
}

func (s *service) List(ctx context.Context, identity access.Identity, input ListInput) (*SaleListResult, error) {
	if err := access.Authorize(identity, access.ActionListSales, access.Resource{}); err != nil {
		return nil, err
	}

	query := saleListQuery{
		Pagination: input.Pagination,
		Filters:    input.Filters,
	}
	if identity.Role != enums.RoleAdmin {
		query.CashierScope = &identity.ID
	}

	rows, nextCursor, err := s.repo.ListSales(ctx, query)
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list sales")
	}
	return &SaleListResult{
		Sales:      NewSaleDTOs(rows),
		NextCursor: nextCursor,
	}, nil
}

func (s *service) Today(ctx context.Context, identity access.Identity) (*TodayResult, error) {
	if err := access.Authorize(identity, access.ActionListSales, access.Resource{}); err != nil {
		return nil, err
	}

	now := time.Now()
	var scope *uuid.UUID
	if identity.Role != enums.RoleAdmin {
		scope = &identity.ID
	}

	rows, err := s.repo.ListForDay(ctx, now, scope)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load today's sales")
	}

	total := decimal.Zero
	for i := range rows {
		total = total.Add(rows[i].TotalAmount)
	}
	return &TodayResult{
		Sales:       NewSaleDTOs(rows),
		Count:       len(rows),
		TotalAmount: total,
		Date:        now.Format("2006-01-02"),
	}, nil
}

func (s *service) Statistics(ctx context.Context, identity access.Identity, periodDays int) (*StatisticsResult, error) {
	if err := access.Authorize(identity, access.ActionReadStatistics, access.Resource{}); err != nil {
		return nil, err
	}
	if periodDays == 0 {
		periodDays = s.cfg.StatisticsDefaultDays
	}
	if periodDays < 1 || periodDays > s.cfg.StatisticsMaxDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("days must be between 1 and %d", s.cfg.StatisticsMaxDays))
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -periodDays)

	totalSales, totalRevenue, err := s.repo.SalesTotals(ctx, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to aggregate sales")
	}
	itemsSold, err := s.repo.ItemsSold(ctx, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to aggregate items sold")
	}
	topCashiers, err := s.repo.TopCashiers(ctx, start, end, topCashierLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to rank cashiers")
	}

	average := decimal.Zero
	if totalSales > 0 {
		average = totalRevenue.Div(decimal.NewFromInt(totalSales)).Round(2)
	}
	return &StatisticsResult{
		TotalSales:       totalSales,
		TotalRevenue:     totalRevenue,
		TotalItemsSold:   itemsSold,
		AverageSaleValue: average,
		TopCashiers:      topCashiers,
		PeriodDays:       periodDays,
		StartDate:        start,
		EndDate:          end,
	}, nil
}

func validateLines(lines []LineInput, maxLines int) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale requires at least one line item")
	}
	if len(lines) > maxLines {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("sale exceeds the maximum of %d line items", maxLines))
	}
	for i, line := range lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("line %d: product id is required", i+1))
		}
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("line %d: quantity must be positive", i+1))
		}
		if line.PriceOverride != nil && line.PriceOverride.LessThanOrEqual(decimal.Zero) {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("line %d: price override must be greater than zero", i+1))
		}
	}
	return nil
}

// issueTransactionID draws receipt numbers until one is unused. The space is
// 48 bits, so a second collision in a row means something is badly wrong.
func issueTransactionID(ctx context.Context, repo *Repository) (string, error) {
	for attempt := 0; attempt < transactionIDAttempts; attempt++ {
		id, err := newTransactionID()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to generate transaction id")
		}
		exists, err := repo.TransactionIDExists(ctx, id)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check transaction id")
		}
		if !exists {
			return id, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "could not issue a unique transaction id")
}

func newTransactionID() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "TXN-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

func failureReason(err error) string {
	appErr := pkgerrors.As(err)
	if appErr == nil {
		return "error"
	}
	switch appErr.Code() {
	case pkgerrors.CodeInsufficientStock:
		return "insufficient_stock"
	case pkgerrors.CodeContention:
		return "contention"
	case pkgerrors.CodeValidation:
		return "validation"
	case pkgerrors.CodeNotFound:
		return "not_found"
	case pkgerrors.CodeConflict:
		return "conflict"
	default:
		return "error"
	}
}
