package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/queue"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/shopstatus"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/store"
)

type fakeQueue struct {
	checkInFn         func(ctx context.Context, input queue.CheckInInput) (models.Ticket, bool, error)
	bookFn            func(ctx context.Context, input queue.BookingInput) (models.Ticket, bool, error)
	checkInApptFn     func(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error)
	assignFn          func(ctx context.Context, shopID string, ticketID int64, barberID string) (models.Ticket, error)
	unassignFn        func(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error)
	completeFn        func(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error)
	cancelFn          func(ctx context.Context, input queue.CancelInput) (models.Ticket, error)
	noShowFn          func(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error)
	clearFn           func(ctx context.Context, shopID string) (int, error)
	presenceFn        func(ctx context.Context, shopID, barberID string, present bool) (models.Barber, error)
	setOverrideFn     func(ctx context.Context, shopID string, override models.Override) error
	clearOverrideFn   func(ctx context.Context, shopID string) error
	shopFn            func(ctx context.Context, key string) (models.Shop, error)
	queueFn           func(ctx context.Context, shopID string) ([]models.Ticket, error)
	ticketFn          func(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error)
	metricsFn         func(ctx context.Context, shopID string) (models.QueueMetrics, error)
	statusFn          func(ctx context.Context, shopID string) (shopstatus.Resolution, error)
	auditFn           func(ctx context.Context, shopID string, ticketID int64) ([]store.AuditEntry, error)
}

func (f fakeQueue) CheckIn(ctx context.Context, input queue.CheckInInput) (models.Ticket, bool, error) {
	if f.checkInFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.checkInFn(ctx, input)
}

func (f fakeQueue) BookAppointment(ctx context.Context, input queue.BookingInput) (models.Ticket, bool, error) {
	if f.bookFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.bookFn(ctx, input)
}

func (f fakeQueue) CheckInAppointment(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
	if f.checkInApptFn == nil {
		return models.Ticket{}, nil
	}
	return f.checkInApptFn(ctx, shopID, ticketID)
}

func (f fakeQueue) AssignBarber(ctx context.Context, shopID string, ticketID int64, barberID string) (models.Ticket, error) {
	if f.assignFn == nil {
		return models.Ticket{}, nil
	}
	return f.assignFn(ctx, shopID, ticketID, barberID)
}

func (f fakeQueue) UnassignBarber(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
	if f.unassignFn == nil {
		return models.Ticket{}, nil
	}
	return f.unassignFn(ctx, shopID, ticketID)
}

func (f fakeQueue) Complete(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
	if f.completeFn == nil {
		return models.Ticket{}, nil
	}
	return f.completeFn(ctx, shopID, ticketID)
}

func (f fakeQueue) Cancel(ctx context.Context, input queue.CancelInput) (models.Ticket, error) {
	if f.cancelFn == nil {
		return models.Ticket{}, nil
	}
	return f.cancelFn(ctx, input)
}

func (f fakeQueue) MarkNoShow(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
	if f.noShowFn == nil {
		return models.Ticket{}, nil
	}
	return f.noShowFn(ctx, shopID, ticketID)
}

func (f fakeQueue) ClearQueue(ctx context.Context, shopID string) (int, error) {
	if f.clearFn == nil {
		return 0, nil
	}
	return f.clearFn(ctx, shopID)
}

func (f fakeQueue) SetBarberPresence(ctx context.Context, shopID, barberID string, present bool) (models.Barber, error) {
	if f.presenceFn == nil {
		return models.Barber{}, nil
	}
	return f.presenceFn(ctx, shopID, barberID, present)
}

func (f fakeQueue) Shop(ctx context.Context, key string) (models.Shop, error) {
	if f.shopFn == nil {
		return models.Shop{}, nil
	}
	return f.shopFn(ctx, key)
}

func (f fakeQueue) SetOverride(ctx context.Context, shopID string, override models.Override) error {
	if f.setOverrideFn == nil {
		return nil
	}
	return f.setOverrideFn(ctx, shopID, override)
}

func (f fakeQueue) ClearOverride(ctx context.Context, shopID string) error {
	if f.clearOverrideFn == nil {
		return nil
	}
	return f.clearOverrideFn(ctx, shopID)
}

func (f fakeQueue) Queue(ctx context.Context, shopID string) ([]models.Ticket, error) {
	if f.queueFn == nil {
		return nil, nil
	}
	return f.queueFn(ctx, shopID)
}

func (f fakeQueue) Ticket(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
	if f.ticketFn == nil {
		return models.Ticket{}, nil
	}
	return f.ticketFn(ctx, shopID, ticketID)
}

func (f fakeQueue) Metrics(ctx context.Context, shopID string) (models.QueueMetrics, error) {
	if f.metricsFn == nil {
		return models.QueueMetrics{}, nil
	}
	return f.metricsFn(ctx, shopID)
}

func (f fakeQueue) Status(ctx context.Context, shopID string) (shopstatus.Resolution, error) {
	if f.statusFn == nil {
		return shopstatus.Resolution{}, nil
	}
	return f.statusFn(ctx, shopID)
}

func (f fakeQueue) Audit(ctx context.Context, shopID string, ticketID int64) ([]store.AuditEntry, error) {
	if f.auditFn == nil {
		return nil, nil
	}
	return f.auditFn(ctx, shopID, ticketID)
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCheckInCreated(t *testing.T) {
	fake := fakeQueue{
		checkInFn: func(ctx context.Context, input queue.CheckInInput) (models.Ticket, bool, error) {
			if input.ShopID != "shop-1" || input.ServiceID != "svc-1" || input.CustomerName != "Ana" {
				t.Fatalf("unexpected input: %+v", input)
			}
			return models.Ticket{TicketID: 7, ShopID: input.ShopID, Status: models.StatusWaiting, Position: 3}, true, nil
		},
	}
	handler := NewHandler(fake).Routes()

	rec := postJSON(t, handler, "/api/shops/shop-1/checkin", map[string]string{
		"service_id":    "svc-1",
		"customer_name": "Ana",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var resp checkInResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Created || resp.Ticket.TicketID != 7 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestCheckInDuplicateReturnsOK(t *testing.T) {
	fake := fakeQueue{
		checkInFn: func(ctx context.Context, input queue.CheckInInput) (models.Ticket, bool, error) {
			return models.Ticket{TicketID: 7}, false, nil
		},
	}
	handler := NewHandler(fake).Routes()

	rec := postJSON(t, handler, "/api/shops/shop-1/checkin", map[string]string{
		"service_id":    "svc-1",
		"customer_name": "Ana",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestCheckInValidation(t *testing.T) {
	handler := NewHandler(fakeQueue{}).Routes()

	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"missing name", map[string]string{"service_id": "svc-1"}},
		{"missing service", map[string]string{"customer_name": "Ana"}},
		{"bad phone", map[string]string{"service_id": "svc-1", "customer_name": "Ana", "customer_phone": "abc"}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, handler, "/api/shops/shop-1/checkin", tt.payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestCheckInRejectsUnknownFields(t *testing.T) {
	handler := NewHandler(fakeQueue{}).Routes()

	rec := postJSON(t, handler, "/api/shops/shop-1/checkin", map[string]string{
		"service_id":    "svc-1",
		"customer_name": "Ana",
		"surprise":      "field",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"queue full", queue.ErrQueueFull, http.StatusConflict, "queue_full"},
		{"shop closed", queue.ErrShopClosed, http.StatusConflict, "shop_closed"},
		{"busy", queue.ErrBusy, http.StatusServiceUnavailable, "busy"},
		{"shop missing", store.ErrShopNotFound, http.StatusNotFound, "shop_not_found"},
		{"service missing", store.ErrServiceNotFound, http.StatusNotFound, "service_not_found"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			fake := fakeQueue{
				checkInFn: func(ctx context.Context, input queue.CheckInInput) (models.Ticket, bool, error) {
					return models.Ticket{}, false, tt.err
				},
			}
			handler := NewHandler(fake).Routes()
			rec := postJSON(t, handler, "/api/shops/shop-1/checkin", map[string]string{
				"service_id":    "svc-1",
				"customer_name": "Ana",
			})
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error.Code != tt.wantBody {
				t.Fatalf("code = %s, want %s", resp.Error.Code, tt.wantBody)
			}
		})
	}
}

func TestBusyResponseSetsRetryAfter(t *testing.T) {
	fake := fakeQueue{
		checkInFn: func(ctx context.Context, input queue.CheckInInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, queue.ErrBusy
		},
	}
	handler := NewHandler(fake).Routes()
	rec := postJSON(t, handler, "/api/shops/shop-1/checkin", map[string]string{
		"service_id":    "svc-1",
		"customer_name": "Ana",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestTicketActions(t *testing.T) {
	var gotAction string
	fake := fakeQueue{
		assignFn: func(ctx context.Context, shopID string, ticketID int64, barberID string) (models.Ticket, error) {
			gotAction = "assign:" + barberID
			return models.Ticket{TicketID: ticketID}, nil
		},
		completeFn: func(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
			gotAction = "complete"
			return models.Ticket{TicketID: ticketID}, nil
		},
		cancelFn: func(ctx context.Context, input queue.CancelInput) (models.Ticket, error) {
			gotAction = "cancel:" + string(input.Actor)
			return models.Ticket{TicketID: input.TicketID}, nil
		},
		noShowFn: func(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
			gotAction = "no-show"
			return models.Ticket{TicketID: ticketID}, nil
		},
	}
	handler := NewHandler(fake).Routes()

	rec := postJSON(t, handler, "/api/shops/shop-1/tickets/42/actions/assign", map[string]string{"barber_id": "b1"})
	if rec.Code != http.StatusOK || gotAction != "assign:b1" {
		t.Fatalf("assign: status=%d action=%s", rec.Code, gotAction)
	}

	rec = postJSON(t, handler, "/api/shops/shop-1/tickets/42/actions/complete", map[string]string{})
	if rec.Code != http.StatusOK || gotAction != "complete" {
		t.Fatalf("complete: status=%d action=%s", rec.Code, gotAction)
	}

	rec = postJSON(t, handler, "/api/shops/shop-1/tickets/42/actions/cancel", map[string]string{"actor": "staff", "reason": "walkout"})
	if rec.Code != http.StatusOK || gotAction != "cancel:staff" {
		t.Fatalf("cancel: status=%d action=%s", rec.Code, gotAction)
	}

	rec = postJSON(t, handler, "/api/shops/shop-1/tickets/42/actions/no-show", map[string]string{})
	if rec.Code != http.StatusOK || gotAction != "no-show" {
		t.Fatalf("no-show: status=%d action=%s", rec.Code, gotAction)
	}

	rec = postJSON(t, handler, "/api/shops/shop-1/tickets/42/actions/unknown", map[string]string{})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown action: status=%d, want 404", rec.Code)
	}

	rec = postJSON(t, handler, "/api/shops/shop-1/tickets/abc/actions/complete", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad ticket id: status=%d, want 400", rec.Code)
	}
}

func TestQueueRead(t *testing.T) {
	fake := fakeQueue{
		queueFn: func(ctx context.Context, shopID string) ([]models.Ticket, error) {
			return []models.Ticket{
				{TicketID: 1, Position: 4, Rank: 1},
				{TicketID: 2, Position: 9, Rank: 2},
			}, nil
		},
	}
	handler := NewHandler(fake).Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/shops/shop-1/queue", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var tickets []models.Ticket
	if err := json.Unmarshal(rec.Body.Bytes(), &tickets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tickets) != 2 || tickets[0].Rank != 1 {
		t.Fatalf("tickets = %+v", tickets)
	}
}

func TestShopLookupBySlug(t *testing.T) {
	fake := fakeQueue{
		shopFn: func(ctx context.Context, key string) (models.Shop, error) {
			if key != "mineiro" {
				t.Fatalf("key = %q, want mineiro", key)
			}
			return models.Shop{ShopID: "shop-1", Slug: "mineiro", Name: "Mineiro"}, nil
		},
	}
	handler := NewHandler(fake).Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/shops/mineiro", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var shop models.Shop
	if err := json.Unmarshal(rec.Body.Bytes(), &shop); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if shop.ShopID != "shop-1" {
		t.Fatalf("shop = %+v", shop)
	}
}

func TestBarberPresence(t *testing.T) {
	fake := fakeQueue{
		presenceFn: func(ctx context.Context, shopID, barberID string, present bool) (models.Barber, error) {
			if shopID != "shop-1" || barberID != "b1" || present {
				t.Fatalf("unexpected call shop=%s barber=%s present=%v", shopID, barberID, present)
			}
			return models.Barber{BarberID: barberID, IsPresent: false}, nil
		},
	}
	handler := NewHandler(fake).Routes()

	rec := postJSON(t, handler, "/api/shops/shop-1/barbers/b1/presence", map[string]bool{"present": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestOverrideRoundTrip(t *testing.T) {
	var set, cleared bool
	fake := fakeQueue{
		setOverrideFn: func(ctx context.Context, shopID string, override models.Override) error {
			set = true
			if override.IsOpen || override.Reason != "burst pipe" {
				t.Fatalf("override = %+v", override)
			}
			return nil
		},
		clearOverrideFn: func(ctx context.Context, shopID string) error {
			cleared = true
			return nil
		},
	}
	handler := NewHandler(fake).Routes()

	rec := postJSON(t, handler, "/api/shops/shop-1/override", map[string]interface{}{
		"is_open": false,
		"until":   "2026-08-31T18:00:00Z",
		"reason":  "burst pipe",
	})
	if rec.Code != http.StatusNoContent || !set {
		t.Fatalf("set override: status=%d set=%v", rec.Code, set)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/shops/shop-1/override", nil)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusNoContent || !cleared {
		t.Fatalf("clear override: status=%d cleared=%v", rec2.Code, cleared)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := NewHandler(fakeQueue{}).Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/shops/shop-1/checkin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestRateLimiterPerShop(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{IPPerMinute: 1000, IPBurst: 1000, ShopPerMinute: 1, ShopBurst: 2})
	handler := limiter.Middleware(NewHandler(fakeQueue{}).Routes())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/shops/shop-1/queue", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d rate limited early", i)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/shops/shop-1/queue", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	// A different shop has its own bucket.
	req = httptest.NewRequest(http.MethodGet, "/api/shops/shop-2/queue", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code == http.StatusTooManyRequests {
		t.Fatal("independent shop should not be limited")
	}
}
