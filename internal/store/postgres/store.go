package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/store"
)

// rollingWindow is how many recent completions feed the average service
// duration.
const rollingWindow = 10

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const ticketColumns = `
	ticket_id, shop_id, type, status, position, service_id, barber_id,
	preferred_barber_id, customer_name, customer_phone, client_id, device_id,
	created_at, check_in_time, scheduled_time, barber_assigned_at, started_at,
	completed_at, cancelled_at, cancel_reason, cancelled_by
`

func (s *Store) GetShop(ctx context.Context, shopID string) (models.Shop, error) {
	return s.getShop(ctx, "shop_id = $1", shopID)
}

func (s *Store) GetShopBySlug(ctx context.Context, slug string) (models.Shop, error) {
	return s.getShop(ctx, "slug = $1", slug)
}

func (s *Store) getShop(ctx context.Context, where string, arg string) (models.Shop, error) {
	var shop models.Shop
	var settingsRaw []byte
	row := s.pool.QueryRow(ctx, `
		SELECT shop_id, slug, name, settings
		FROM shops
		WHERE `+where, arg)
	if err := row.Scan(&shop.ShopID, &shop.Slug, &shop.Name, &settingsRaw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Shop{}, store.ErrShopNotFound
		}
		return models.Shop{}, err
	}
	if len(settingsRaw) > 0 {
		if err := json.Unmarshal(settingsRaw, &shop.Settings); err != nil {
			return models.Shop{}, err
		}
	}
	return shop, nil
}

func (s *Store) UpdateShopSettings(ctx context.Context, shopID string, settings models.ShopSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE shops SET settings = $2 WHERE shop_id = $1
	`, shopID, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrShopNotFound
	}
	return nil
}

func (s *Store) GetService(ctx context.Context, shopID, serviceID string) (models.Service, error) {
	var service models.Service
	var durationSeconds int64
	row := s.pool.QueryRow(ctx, `
		SELECT service_id, shop_id, name, duration_seconds, active
		FROM services
		WHERE shop_id = $1 AND service_id = $2 AND active
	`, shopID, serviceID)
	if err := row.Scan(&service.ServiceID, &service.ShopID, &service.Name, &durationSeconds, &service.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Service{}, store.ErrServiceNotFound
		}
		return models.Service{}, err
	}
	service.Duration = time.Duration(durationSeconds) * time.Second
	return service, nil
}

func (s *Store) GetTicket(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE shop_id = $1 AND ticket_id = $2
	`, shopID, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) ListActiveTickets(ctx context.Context, shopID string) ([]models.Ticket, error) {
	return s.listTickets(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE shop_id = $1 AND status IN ('pending','waiting','in_progress')
		ORDER BY created_at ASC
	`, shopID)
}

func (s *Store) ListWaitingTickets(ctx context.Context, shopID string) ([]models.Ticket, error) {
	return s.listTickets(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE shop_id = $1 AND status = 'waiting'
		ORDER BY position ASC
	`, shopID)
}

func (s *Store) listTickets(ctx context.Context, query string, args ...interface{}) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Store) InsertTicket(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tickets (
			shop_id, type, status, position, service_id, barber_id,
			preferred_barber_id, customer_name, customer_phone, client_id,
			device_id, created_at, check_in_time, scheduled_time,
			barber_assigned_at, started_at, completed_at, cancelled_at,
			cancel_reason, cancelled_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		RETURNING ticket_id
	`,
		ticket.ShopID, ticket.Type, ticket.Status, ticket.Position, ticket.ServiceID,
		ticket.BarberID, ticket.PreferredBarberID, ticket.CustomerName,
		nullIfEmpty(ticket.CustomerPhone), ticket.ClientID, nullIfEmpty(ticket.DeviceID),
		ticket.CreatedAt, ticket.CheckInTime, ticket.ScheduledTime,
		ticket.BarberAssignedAt, ticket.StartedAt, ticket.CompletedAt,
		ticket.CancelledAt, nullIfEmpty(ticket.CancelReason), nullIfEmpty(string(ticket.CancelledBy)),
	)
	if err := row.Scan(&ticket.TicketID); err != nil {
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) UpdateTicket(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tickets SET
			status = $3, position = $4, barber_id = $5, check_in_time = $6,
			barber_assigned_at = $7, started_at = $8, completed_at = $9,
			cancelled_at = $10, cancel_reason = $11, cancelled_by = $12
		WHERE shop_id = $1 AND ticket_id = $2
	`,
		ticket.ShopID, ticket.TicketID, ticket.Status, ticket.Position,
		ticket.BarberID, ticket.CheckInTime, ticket.BarberAssignedAt,
		ticket.StartedAt, ticket.CompletedAt, ticket.CancelledAt,
		nullIfEmpty(ticket.CancelReason), nullIfEmpty(string(ticket.CancelledBy)),
	)
	if err != nil {
		return models.Ticket{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

func (s *Store) DeleteTickets(ctx context.Context, shopID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM tickets
		WHERE shop_id = $1 AND status IN ('pending','waiting','in_progress')
	`, shopID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// NextPosition advances the per-shop arrival counter with an upsert, which
// keeps it monotonic across queue drains.
func (s *Store) NextPosition(ctx context.Context, shopID string) (int, error) {
	var next int
	row := s.pool.QueryRow(ctx, `
		INSERT INTO position_sequences (shop_id, next_position)
		VALUES ($1, 1)
		ON CONFLICT (shop_id)
		DO UPDATE SET next_position = position_sequences.next_position + 1
		RETURNING next_position
	`, shopID)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) ListBarbers(ctx context.Context, shopID string) ([]models.Barber, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT barber_id, shop_id, name, is_active, is_present
		FROM barbers
		WHERE shop_id = $1
		ORDER BY name ASC
	`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var barbers []models.Barber
	for rows.Next() {
		var barber models.Barber
		if err := rows.Scan(&barber.BarberID, &barber.ShopID, &barber.Name, &barber.IsActive, &barber.IsPresent); err != nil {
			return nil, err
		}
		barbers = append(barbers, barber)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return barbers, nil
}

func (s *Store) GetBarber(ctx context.Context, shopID, barberID string) (models.Barber, error) {
	var barber models.Barber
	row := s.pool.QueryRow(ctx, `
		SELECT barber_id, shop_id, name, is_active, is_present
		FROM barbers
		WHERE shop_id = $1 AND barber_id = $2
	`, shopID, barberID)
	if err := row.Scan(&barber.BarberID, &barber.ShopID, &barber.Name, &barber.IsActive, &barber.IsPresent); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Barber{}, store.ErrBarberNotFound
		}
		return models.Barber{}, err
	}
	return barber, nil
}

func (s *Store) SetBarberPresence(ctx context.Context, shopID, barberID string, present bool) (models.Barber, error) {
	var barber models.Barber
	row := s.pool.QueryRow(ctx, `
		UPDATE barbers SET is_present = $3
		WHERE shop_id = $1 AND barber_id = $2
		RETURNING barber_id, shop_id, name, is_active, is_present
	`, shopID, barberID, present)
	if err := row.Scan(&barber.BarberID, &barber.ShopID, &barber.Name, &barber.IsActive, &barber.IsPresent); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Barber{}, store.ErrBarberNotFound
		}
		return models.Barber{}, err
	}
	return barber, nil
}

func (s *Store) AverageServiceDuration(ctx context.Context, shopID, serviceID string) (time.Duration, bool, error) {
	var seconds sql.NullFloat64
	row := s.pool.QueryRow(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM completed_at - started_at))
		FROM (
			SELECT completed_at, started_at
			FROM tickets
			WHERE shop_id = $1 AND service_id = $2 AND status = 'completed'
			  AND started_at IS NOT NULL AND completed_at IS NOT NULL
			ORDER BY completed_at DESC
			LIMIT $3
		) recent
	`, shopID, serviceID, rollingWindow)
	if err := row.Scan(&seconds); err != nil {
		return 0, false, err
	}
	if !seconds.Valid || seconds.Float64 <= 0 {
		return 0, false, nil
	}
	return time.Duration(seconds.Float64 * float64(time.Second)), true, nil
}

func (s *Store) AppendAudit(ctx context.Context, entry store.AuditEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ticket_audit (
			audit_id, shop_id, ticket_id, from_status, to_status, actor, reason, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.AuditID, entry.ShopID, entry.TicketID, nullIfEmpty(string(entry.FromStatus)),
		entry.ToStatus, entry.Actor, nullIfEmpty(entry.Reason), entry.CreatedAt)
	return err
}

func (s *Store) ListAudit(ctx context.Context, shopID string, ticketID int64) ([]store.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT audit_id, shop_id, ticket_id, from_status, to_status, actor, reason, created_at
		FROM ticket_audit
		WHERE shop_id = $1 AND ticket_id = $2
		ORDER BY created_at ASC, audit_id ASC
	`, shopID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []store.AuditEntry
	for rows.Next() {
		var entry store.AuditEntry
		var fromNull, reasonNull sql.NullString
		if err := rows.Scan(&entry.AuditID, &entry.ShopID, &entry.TicketID, &fromNull, &entry.ToStatus, &entry.Actor, &reasonNull, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if fromNull.Valid {
			entry.FromStatus = models.Status(fromNull.String)
		}
		if reasonNull.Valid {
			entry.Reason = reasonNull.String
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) PreferredMatchCounts(ctx context.Context, shopID string) (int, int, error) {
	var requested, fulfilled int
	row := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE preferred_barber_id IS NOT NULL),
			COUNT(*) FILTER (WHERE preferred_barber_id IS NOT NULL AND barber_id = preferred_barber_id)
		FROM tickets
		WHERE shop_id = $1 AND status IN ('waiting','in_progress','completed')
	`, shopID)
	if err := row.Scan(&requested, &fulfilled); err != nil {
		return 0, 0, err
	}
	return requested, fulfilled, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row rowScanner) (models.Ticket, error) {
	var ticket models.Ticket
	var barberNull, preferredNull, clientNull sql.NullString
	var phoneNull, deviceNull, reasonNull, cancelledByNull sql.NullString
	var checkInNull, scheduledNull, assignedNull sql.NullTime
	var startedNull, completedNull, cancelledNull sql.NullTime

	err := row.Scan(
		&ticket.TicketID, &ticket.ShopID, &ticket.Type, &ticket.Status,
		&ticket.Position, &ticket.ServiceID, &barberNull, &preferredNull,
		&ticket.CustomerName, &phoneNull, &clientNull, &deviceNull,
		&ticket.CreatedAt, &checkInNull, &scheduledNull, &assignedNull,
		&startedNull, &completedNull, &cancelledNull, &reasonNull, &cancelledByNull,
	)
	if err != nil {
		return models.Ticket{}, err
	}

	ticket.BarberID = nullStringPtr(barberNull)
	ticket.PreferredBarberID = nullStringPtr(preferredNull)
	ticket.ClientID = nullStringPtr(clientNull)
	if phoneNull.Valid {
		ticket.CustomerPhone = phoneNull.String
	}
	if deviceNull.Valid {
		ticket.DeviceID = deviceNull.String
	}
	ticket.CheckInTime = nullTimePtr(checkInNull)
	ticket.ScheduledTime = nullTimePtr(scheduledNull)
	ticket.BarberAssignedAt = nullTimePtr(assignedNull)
	ticket.StartedAt = nullTimePtr(startedNull)
	ticket.CompletedAt = nullTimePtr(completedNull)
	ticket.CancelledAt = nullTimePtr(cancelledNull)
	if reasonNull.Valid {
		ticket.CancelReason = reasonNull.String
	}
	if cancelledByNull.Valid {
		ticket.CancelledBy = models.Actor(cancelledByNull.String)
	}
	return ticket, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}
