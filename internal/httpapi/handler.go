package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/queue"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/shopstatus"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/store"
)

// QueueService is the slice of the scheduling core the HTTP layer needs.
type QueueService interface {
	CheckIn(ctx context.Context, input queue.CheckInInput) (models.Ticket, bool, error)
	BookAppointment(ctx context.Context, input queue.BookingInput) (models.Ticket, bool, error)
	CheckInAppointment(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error)
	AssignBarber(ctx context.Context, shopID string, ticketID int64, barberID string) (models.Ticket, error)
	UnassignBarber(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error)
	Complete(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error)
	Cancel(ctx context.Context, input queue.CancelInput) (models.Ticket, error)
	MarkNoShow(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error)
	ClearQueue(ctx context.Context, shopID string) (int, error)
	SetBarberPresence(ctx context.Context, shopID, barberID string, present bool) (models.Barber, error)
	SetOverride(ctx context.Context, shopID string, override models.Override) error
	ClearOverride(ctx context.Context, shopID string) error
	Shop(ctx context.Context, key string) (models.Shop, error)
	Queue(ctx context.Context, shopID string) ([]models.Ticket, error)
	Ticket(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error)
	Metrics(ctx context.Context, shopID string) (models.QueueMetrics, error)
	Status(ctx context.Context, shopID string) (shopstatus.Resolution, error)
	Audit(ctx context.Context, shopID string, ticketID int64) ([]store.AuditEntry, error)
}

type Handler struct {
	queue QueueService
}

func NewHandler(q QueueService) *Handler {
	return &Handler{queue: q}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/shops/", h.handleShops)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleShops dispatches every shop-scoped route. Paths follow
// /api/shops/{shop_id}/{resource}[...], parsed by hand so a single prefix
// registration covers the whole surface.
func (h *Handler) handleShops(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/shops/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	shopID := parts[0]

	if len(parts) == 1 {
		h.handleShop(w, r, shopID)
		return
	}

	switch parts[1] {
	case "checkin":
		if len(parts) == 2 {
			h.handleCheckIn(w, r, shopID)
			return
		}
	case "appointments":
		if len(parts) == 2 {
			h.handleBookAppointment(w, r, shopID)
			return
		}
	case "queue":
		switch {
		case len(parts) == 2:
			h.handleQueue(w, r, shopID)
			return
		case len(parts) == 3 && parts[2] == "clear":
			h.handleClearQueue(w, r, shopID)
			return
		}
	case "metrics":
		if len(parts) == 2 {
			h.handleMetrics(w, r, shopID)
			return
		}
	case "status":
		if len(parts) == 2 {
			h.handleStatus(w, r, shopID)
			return
		}
	case "override":
		if len(parts) == 2 {
			h.handleOverride(w, r, shopID)
			return
		}
	case "tickets":
		ticketID, err := parseTicketID(parts)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "ticket id must be a positive integer")
			return
		}
		switch {
		case len(parts) == 3:
			h.handleTicket(w, r, shopID, ticketID)
			return
		case len(parts) == 4 && parts[3] == "audit":
			h.handleAudit(w, r, shopID, ticketID)
			return
		case len(parts) == 5 && parts[3] == "actions":
			h.handleTicketAction(w, r, shopID, ticketID, parts[4])
			return
		}
	case "barbers":
		if len(parts) == 4 && parts[3] == "presence" {
			h.handleBarberPresence(w, r, shopID, parts[2])
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func parseTicketID(parts []string) (int64, error) {
	if len(parts) < 3 {
		return 0, errors.New("missing ticket id")
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid ticket id")
	}
	return id, nil
}

type checkInRequest struct {
	ServiceID         string `json:"service_id"`
	CustomerName      string `json:"customer_name"`
	CustomerPhone     string `json:"customer_phone"`
	ClientID          string `json:"client_id"`
	DeviceID          string `json:"device_id"`
	PreferredBarberID string `json:"preferred_barber_id"`
}

type bookAppointmentRequest struct {
	ServiceID         string `json:"service_id"`
	CustomerName      string `json:"customer_name"`
	CustomerPhone     string `json:"customer_phone"`
	ClientID          string `json:"client_id"`
	DeviceID          string `json:"device_id"`
	PreferredBarberID string `json:"preferred_barber_id"`
	ScheduledTime     string `json:"scheduled_time"`
}

type cancelRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type presenceRequest struct {
	Present bool `json:"present"`
}

type overrideRequest struct {
	IsOpen bool   `json:"is_open"`
	Until  string `json:"until"`
	Reason string `json:"reason"`
}

type checkInResponse struct {
	Ticket  models.Ticket `json:"ticket"`
	Created bool          `json:"created"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request, shopID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req checkInRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	if req.ServiceID == "" || req.CustomerName == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "service_id and customer_name are required")
		return
	}
	if req.CustomerPhone != "" && !isValidPhone(req.CustomerPhone) {
		writeError(w, http.StatusBadRequest, "invalid_request", "customer_phone must be 8-16 digits")
		return
	}

	ticket, created, err := h.queue.CheckIn(r.Context(), queue.CheckInInput{
		ShopID:            shopID,
		ServiceID:         req.ServiceID,
		CustomerName:      req.CustomerName,
		CustomerPhone:     req.CustomerPhone,
		ClientID:          strings.TrimSpace(req.ClientID),
		DeviceID:          strings.TrimSpace(req.DeviceID),
		PreferredBarberID: strings.TrimSpace(req.PreferredBarberID),
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}

	status := http.StatusCreated
	if !created {
		// Duplicate joins resolve to the caller's existing ticket.
		status = http.StatusOK
	}
	writeJSON(w, status, checkInResponse{Ticket: ticket, Created: created})
}

func (h *Handler) handleBookAppointment(w http.ResponseWriter, r *http.Request, shopID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req bookAppointmentRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.ScheduledTime = strings.TrimSpace(req.ScheduledTime)
	if req.ServiceID == "" || req.CustomerName == "" || req.ScheduledTime == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "service_id, customer_name, and scheduled_time are required")
		return
	}
	scheduled, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "scheduled_time must be an RFC3339 timestamp")
		return
	}
	if req.CustomerPhone != "" && !isValidPhone(strings.TrimSpace(req.CustomerPhone)) {
		writeError(w, http.StatusBadRequest, "invalid_request", "customer_phone must be 8-16 digits")
		return
	}

	ticket, created, err := h.queue.BookAppointment(r.Context(), queue.BookingInput{
		ShopID:            shopID,
		ServiceID:         req.ServiceID,
		CustomerName:      req.CustomerName,
		CustomerPhone:     strings.TrimSpace(req.CustomerPhone),
		ClientID:          strings.TrimSpace(req.ClientID),
		DeviceID:          strings.TrimSpace(req.DeviceID),
		PreferredBarberID: strings.TrimSpace(req.PreferredBarberID),
		ScheduledTime:     scheduled,
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, checkInResponse{Ticket: ticket, Created: created})
}

func (h *Handler) handleTicketAction(w http.ResponseWriter, r *http.Request, shopID string, ticketID int64, action string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var ticket models.Ticket
	var err error
	switch action {
	case "checkin":
		ticket, err = h.queue.CheckInAppointment(r.Context(), shopID, ticketID)
	case "assign":
		var req struct {
			BarberID string `json:"barber_id"`
		}
		if !decodeRequest(w, r, &req) {
			return
		}
		req.BarberID = strings.TrimSpace(req.BarberID)
		if req.BarberID == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "barber_id is required")
			return
		}
		ticket, err = h.queue.AssignBarber(r.Context(), shopID, ticketID, req.BarberID)
	case "unassign":
		ticket, err = h.queue.UnassignBarber(r.Context(), shopID, ticketID)
	case "complete":
		ticket, err = h.queue.Complete(r.Context(), shopID, ticketID)
	case "cancel":
		var req cancelRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		actor := models.Actor(strings.TrimSpace(req.Actor))
		if actor == "" {
			actor = models.ActorCustomer
		}
		if actor != models.ActorCustomer && actor != models.ActorStaff {
			writeError(w, http.StatusBadRequest, "invalid_request", "actor must be customer or staff")
			return
		}
		ticket, err = h.queue.Cancel(r.Context(), queue.CancelInput{
			ShopID:   shopID,
			TicketID: ticketID,
			Actor:    actor,
			Reason:   strings.TrimSpace(req.Reason),
		})
	case "no-show":
		ticket, err = h.queue.MarkNoShow(r.Context(), shopID, ticketID)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// handleShop accepts either a shop id or its slug, for the public page.
func (h *Handler) handleShop(w http.ResponseWriter, r *http.Request, key string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	shop, err := h.queue.Shop(r.Context(), key)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (h *Handler) handleTicket(w http.ResponseWriter, r *http.Request, shopID string, ticketID int64) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ticket, err := h.queue.Ticket(r.Context(), shopID, ticketID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request, shopID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tickets, err := h.queue.Queue(r.Context(), shopID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *Handler) handleClearQueue(w http.ResponseWriter, r *http.Request, shopID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	deleted, err := h.queue.ClearQueue(r.Context(), shopID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request, shopID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	metrics, err := h.queue.Metrics(r.Context(), shopID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request, shopID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resolution, err := h.queue.Status(r.Context(), shopID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request, shopID string, ticketID int64) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entries, err := h.queue.Audit(r.Context(), shopID, ticketID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleBarberPresence(w http.ResponseWriter, r *http.Request, shopID, barberID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req presenceRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	barber, err := h.queue.SetBarberPresence(r.Context(), shopID, barberID, req.Present)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, barber)
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request, shopID string) {
	switch r.Method {
	case http.MethodPost:
		var req overrideRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		req.Until = strings.TrimSpace(req.Until)
		if req.Until == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "until is required")
			return
		}
		until, err := time.Parse(time.RFC3339, req.Until)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "until must be an RFC3339 timestamp")
			return
		}
		if err := h.queue.SetOverride(r.Context(), shopID, models.Override{
			IsOpen: req.IsOpen,
			Until:  until,
			Reason: strings.TrimSpace(req.Reason),
		}); err != nil {
			writeMappedError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := h.queue.ClearOverride(r.Context(), shopID); err != nil {
			writeMappedError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func isValidPhone(value string) bool {
	if len(value) < 8 || len(value) > 16 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrShopNotFound):
		return http.StatusNotFound, "shop_not_found", "shop not found"
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrServiceNotFound):
		return http.StatusNotFound, "service_not_found", "service not found"
	case errors.Is(err, store.ErrBarberNotFound):
		return http.StatusNotFound, "barber_not_found", "barber not found"
	case errors.Is(err, queue.ErrQueueFull):
		return http.StatusConflict, "queue_full", "queue is at capacity"
	case errors.Is(err, queue.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "ticket state does not allow this action"
	case errors.Is(err, queue.ErrBarberUnavailable):
		return http.StatusConflict, "barber_unavailable", "barber is not available"
	case errors.Is(err, queue.ErrShopClosed):
		return http.StatusConflict, "shop_closed", "shop is not accepting check-ins"
	case errors.Is(err, queue.ErrNoShowNotEligible):
		return http.StatusConflict, "not_eligible", "ticket is not eligible for no-show"
	case errors.Is(err, queue.ErrBusy):
		return http.StatusServiceUnavailable, "busy", "shop is busy, retry shortly"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, msg := mapError(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, code, msg)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
