package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/willy-peters/SmartPOS/api/middleware"
	"github.com/willy-peters/SmartPOS/internal/access"
	"github.com/willy-peters/SmartPOS/internal/sales"
	"github.com/willy-peters/SmartPOS/pkg/enums"
	"github.com/willy-peters/SmartPOS/pkg/logger"
)

type stubSaleService struct {
	createFn func(ctx context.Context, identity access.Identity, input sales.CreateInput) (*sales.SaleDTO, error)
	listFn   func(ctx context.Context, identity access.Identity, input sales.ListInput) (*sales.SaleListResult, error)
}

func (s *stubSaleService) Create(ctx context.Context, identity access.Identity, input sales.CreateInput) (*sales.SaleDTO, error) {
	if s.createFn != nil {
		return s.createFn(ctx, identity, input)
	}
	panic("unimplemented")
}

func (s *stubSaleService) Get(ctx context.Context, identity access.Identity, id uuid.UUID) (*sales.SaleDTO, error) {
	panic("unimplemented")
}

func (s *stubSaleService) List(ctx context.Context, identity access.Identity, input sales.ListInput) (*sales.SaleListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, identity, input)
	}
	panic("unimplemented")
}

func (s *stubSaleService) Today(ctx context.Context, identity access.Identity) (*sales.TodayResult, error) {
	panic("unimplemented")
}

func (s *stubSaleService) Statistics(ctx context.Context, identity access.Identity, periodDays int) (*sales.StatisticsResult, error) {
	panic("unimplemented")
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func cashierContext(identity access.Identity) context.Context {
	return middleware.WithIdentity(context.Background(), identity)
}

func TestSaleCreate(t *testing.T) {
	cashier := access.Identity{ID: uuid.New(), Role: enums.RoleCashier}
	productA := uuid.New()
	productB := uuid.New()

	var captured sales.CreateInput
	svc := &stubSaleService{
		createFn: func(ctx context.Context, identity access.Identity, input sales.CreateInput) (*sales.SaleDTO, error) {
			if identity != cashier {
				t.Fatalf("expected cashier identity, got %+v", identity)
			}
			captured = input
			return &sales.SaleDTO{ID: uuid.New(), TransactionID: "TXN-20240301-ABCDEF"}, nil
		},
	}

	body := `{"items":[
		{"productId":"` + productA.String() + `","quantity":2},
		{"productId":"` + productB.String() + `","quantity":1,"priceOverride":"7.25"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/sales", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(cashierContext(cashier))
	rec := httptest.NewRecorder()
	SaleCreate(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", rec.Code, rec.Body.String())
	}
	if len(captured.Lines) != 2 {
		t.Fatalf("expected 2 lines got %d", len(captured.Lines))
	}
	if captured.Lines[0].ProductID != productA || captured.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected first line: %+v", captured.Lines[0])
	}
	if captured.Lines[0].PriceOverride != nil {
		t.Fatalf("expected no override on first line")
	}
	if captured.Lines[1].PriceOverride == nil || !captured.Lines[1].PriceOverride.Equal(decimal.RequireFromString("7.25")) {
		t.Fatalf("expected 7.25 override got %+v", captured.Lines[1].PriceOverride)
	}

	var envelope struct {
		Data sales.SaleDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.TransactionID != "TXN-20240301-ABCDEF" {
		t.Fatalf("expected transaction id in body got %q", envelope.Data.TransactionID)
	}
}

func TestSaleCreateValidation(t *testing.T) {
	cashier := access.Identity{ID: uuid.New(), Role: enums.RoleCashier}
	svc := &stubSaleService{}

	cases := []struct {
		name string
		body string
	}{
		{"empty items", `{"items":[]}`},
		{"zero quantity", `{"items":[{"productId":"` + uuid.NewString() + `","quantity":0}]}`},
		{"unknown field", `{"items":[{"productId":"` + uuid.NewString() + `","quantity":1}],"total":"9.99"}`},
		{"malformed json", `{"items":`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sales", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			req = req.WithContext(cashierContext(cashier))
			rec := httptest.NewRecorder()
			SaleCreate(svc, testLogger()).ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d body=%s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSaleListQueryParsing(t *testing.T) {
	cashier := access.Identity{ID: uuid.New(), Role: enums.RoleCashier}
	filterCashier := uuid.New()

	var captured sales.ListInput
	svc := &stubSaleService{
		listFn: func(ctx context.Context, identity access.Identity, input sales.ListInput) (*sales.SaleListResult, error) {
			captured = input
			return &sales.SaleListResult{}, nil
		},
	}

	target := "/api/sales?transaction_id=er0001&date_from=2024-03-01&date_to=2024-03-05" +
		"&cashier_id=" + filterCashier.String() + "&min_total=10.50&max_total=99&limit=25&cursor=abc"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(cashierContext(cashier))
	rec := httptest.NewRecorder()
	SaleList(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", rec.Code, rec.Body.String())
	}

	if captured.Filters.TransactionID != "er0001" {
		t.Fatalf("expected transaction filter got %q", captured.Filters.TransactionID)
	}
	wantFrom := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if captured.Filters.DateFrom == nil || !captured.Filters.DateFrom.Equal(wantFrom) {
		t.Fatalf("expected date_from %v got %v", wantFrom, captured.Filters.DateFrom)
	}
	// date_to covers the whole named day, so the bound is the next midnight.
	wantTo := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	if captured.Filters.DateTo == nil || !captured.Filters.DateTo.Equal(wantTo) {
		t.Fatalf("expected date_to %v got %v", wantTo, captured.Filters.DateTo)
	}
	if captured.Filters.CashierID == nil || *captured.Filters.CashierID != filterCashier {
		t.Fatalf("expected cashier filter %s got %v", filterCashier, captured.Filters.CashierID)
	}
	if captured.Filters.MinTotal == nil || !captured.Filters.MinTotal.Equal(decimal.RequireFromString("10.50")) {
		t.Fatalf("expected min_total 10.50 got %v", captured.Filters.MinTotal)
	}
	if captured.Filters.MaxTotal == nil || !captured.Filters.MaxTotal.Equal(decimal.RequireFromString("99")) {
		t.Fatalf("expected max_total 99 got %v", captured.Filters.MaxTotal)
	}
	if captured.Pagination.Limit != 25 {
		t.Fatalf("expected limit 25 got %d", captured.Pagination.Limit)
	}
	if captured.Pagination.Cursor != "abc" {
		t.Fatalf("expected cursor abc got %q", captured.Pagination.Cursor)
	}
}

func TestSaleListRejectsBadQuery(t *testing.T) {
	cashier := access.Identity{ID: uuid.New(), Role: enums.RoleCashier}
	svc := &stubSaleService{}

	for _, target := range []string{
		"/api/sales?date_from=03/01/2024",
		"/api/sales?cashier_id=not-a-uuid",
		"/api/sales?min_total=abc",
		"/api/sales?limit=-1",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req = req.WithContext(cashierContext(cashier))
		rec := httptest.NewRecorder()
		SaleList(svc, testLogger()).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s got %d", target, rec.Code)
		}
	}
}

func TestSaleImmutableMessages(t *testing.T) {
	handler := SaleImmutable(testLogger())

	cases := []struct {
		method  string
		message string
	}{
		{http.MethodPut, saleModifyMessage},
		{http.MethodPatch, saleModifyMessage},
		{http.MethodDelete, saleDeleteMessage},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/api/sales/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405 for %s got %d", tc.method, rec.Code)
		}
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if payload.Message != tc.message {
			t.Fatalf("expected %q got %q", tc.message, payload.Message)
		}
	}
}
