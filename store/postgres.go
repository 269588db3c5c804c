package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
	"github.com/theoremus-urban-solutions/siri-vm-hub/model"
)

//go:embed schema.sql
var schemaSQL string

// Postgres is the pgx-backed Store.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres opens a connection pool and verifies it with a ping.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool, logger: logger.With("component", "postgres")}, nil
}

// EnsureSchema creates missing tables and indexes.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() { p.pool.Close() }

const producerColumns = `subscription_id, url, description, short_description, status, requestor_ref,
	api_key, service_start_datetime, service_end_datetime, last_modified_datetime,
	heartbeat_attempts, last_heartbeat`

func (p *Postgres) SaveProducer(ctx context.Context, s model.ProducerSubscription) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO producer_subscriptions (`+producerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (subscription_id) DO UPDATE SET
			url = EXCLUDED.url,
			description = EXCLUDED.description,
			short_description = EXCLUDED.short_description,
			status = EXCLUDED.status,
			requestor_ref = EXCLUDED.requestor_ref,
			api_key = EXCLUDED.api_key,
			service_start_datetime = EXCLUDED.service_start_datetime,
			service_end_datetime = EXCLUDED.service_end_datetime,
			last_modified_datetime = EXCLUDED.last_modified_datetime,
			heartbeat_attempts = EXCLUDED.heartbeat_attempts,
			last_heartbeat = EXCLUDED.last_heartbeat`,
		s.ID, s.URL, s.Description, s.ShortDescription, string(s.Status), s.RequestorRef,
		s.APIKey, s.ServiceStartDatetime, s.ServiceEndDatetime, s.LastModifiedDatetime,
		s.HeartbeatAttempts, s.LastHeartbeat)
	if err != nil {
		return fmt.Errorf("save producer subscription %s: %w", s.ID, err)
	}
	return nil
}

func scanProducer(row pgx.Row) (model.ProducerSubscription, error) {
	var s model.ProducerSubscription
	var status string
	err := row.Scan(&s.ID, &s.URL, &s.Description, &s.ShortDescription, &status, &s.RequestorRef,
		&s.APIKey, &s.ServiceStartDatetime, &s.ServiceEndDatetime, &s.LastModifiedDatetime,
		&s.HeartbeatAttempts, &s.LastHeartbeat)
	s.Status = model.SubscriptionStatus(status)
	return s, err
}

func (p *Postgres) GetProducer(ctx context.Context, id string) (model.ProducerSubscription, error) {
	s, err := scanProducer(p.pool.QueryRow(ctx,
		`SELECT `+producerColumns+` FROM producer_subscriptions WHERE subscription_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return s, ErrSubscriptionNotFound
	}
	if err != nil {
		return s, fmt.Errorf("get producer subscription %s: %w", id, err)
	}
	return s, nil
}

func (p *Postgres) ListProducers(ctx context.Context, statuses ...model.SubscriptionStatus) ([]model.ProducerSubscription, error) {
	q := `SELECT ` + producerColumns + ` FROM producer_subscriptions`
	var args []any
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		q += ` WHERE status = ANY($1)`
		args = append(args, names)
	}
	rows, err := p.pool.Query(ctx, q+` ORDER BY subscription_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list producer subscriptions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ProducerSubscription, error) {
		return scanProducer(row)
	})
}

func (p *Postgres) TouchHeartbeat(ctx context.Context, id string, at, modified time.Time) error {
	tag, err := p.pool.Exec(ctx, `UPDATE producer_subscriptions
		SET last_heartbeat = $2, heartbeat_attempts = 0, last_modified_datetime = $3,
			status = CASE WHEN status = 'error' THEN 'live' ELSE status END
		WHERE subscription_id = $1`, id, at, modified)
	if err != nil {
		return fmt.Errorf("touch heartbeat %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (p *Postgres) RecordMissedHeartbeat(ctx context.Context, id string, seen *time.Time, maxAttempts int, modified time.Time) (model.ProducerSubscription, error) {
	s, err := scanProducer(p.pool.QueryRow(ctx, `UPDATE producer_subscriptions
		SET heartbeat_attempts = heartbeat_attempts + 1,
			status = CASE WHEN $3 > 0 AND heartbeat_attempts + 1 >= $3 THEN 'error' ELSE status END,
			last_modified_datetime = $4
		WHERE subscription_id = $1 AND status = 'live' AND last_heartbeat IS NOT DISTINCT FROM $2::timestamptz
		RETURNING `+producerColumns, id, seen, maxAttempts, modified))
	if errors.Is(err, pgx.ErrNoRows) {
		return s, ErrSubscriptionNotFound
	}
	if err != nil {
		return s, fmt.Errorf("record missed heartbeat %s: %w", id, err)
	}
	return s, nil
}

const consumerColumns = `id, user_id, name, url, requestor_ref, update_interval, status, producer_ids,
	bbox_min_lon, bbox_min_lat, bbox_max_lon, bbox_max_lat, operator_refs, line_refs,
	last_record_id, queue_name, schedule_name, failed_attempts, last_delivered, created_at`

func (p *Postgres) SaveConsumer(ctx context.Context, c model.ConsumerSubscription) error {
	var minLon, minLat, maxLon, maxLat *float64
	if bb := c.BoundingBox; bb != nil {
		minLon, minLat, maxLon, maxLat = &bb.MinLongitude, &bb.MinLatitude, &bb.MaxLongitude, &bb.MaxLatitude
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO consumer_subscriptions (`+consumerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			requestor_ref = EXCLUDED.requestor_ref,
			update_interval = EXCLUDED.update_interval,
			status = EXCLUDED.status,
			producer_ids = EXCLUDED.producer_ids,
			bbox_min_lon = EXCLUDED.bbox_min_lon,
			bbox_min_lat = EXCLUDED.bbox_min_lat,
			bbox_max_lon = EXCLUDED.bbox_max_lon,
			bbox_max_lat = EXCLUDED.bbox_max_lat,
			operator_refs = EXCLUDED.operator_refs,
			line_refs = EXCLUDED.line_refs,
			last_record_id = GREATEST(consumer_subscriptions.last_record_id, EXCLUDED.last_record_id),
			queue_name = EXCLUDED.queue_name,
			schedule_name = EXCLUDED.schedule_name,
			failed_attempts = EXCLUDED.failed_attempts,
			last_delivered = EXCLUDED.last_delivered`,
		c.ID, c.UserID, c.Name, c.URL, c.RequestorRef, c.UpdateInterval, string(c.Status), nonNil(c.ProducerIDs),
		minLon, minLat, maxLon, maxLat, nonNil(c.OperatorRefs), nonNil(c.LineRefs),
		c.LastRecordID, c.QueueName, c.ScheduleName, c.FailedAttempts, c.LastDelivered, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("save consumer subscription %s: %w", c.ID, err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanConsumer(row pgx.Row) (model.ConsumerSubscription, error) {
	var c model.ConsumerSubscription
	var status string
	var minLon, minLat, maxLon, maxLat *float64
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.URL, &c.RequestorRef, &c.UpdateInterval, &status, &c.ProducerIDs,
		&minLon, &minLat, &maxLon, &maxLat, &c.OperatorRefs, &c.LineRefs,
		&c.LastRecordID, &c.QueueName, &c.ScheduleName, &c.FailedAttempts, &c.LastDelivered, &c.CreatedAt)
	c.Status = model.SubscriptionStatus(status)
	if minLon != nil && minLat != nil && maxLon != nil && maxLat != nil {
		c.BoundingBox = &model.BoundingBox{MinLongitude: *minLon, MinLatitude: *minLat, MaxLongitude: *maxLon, MaxLatitude: *maxLat}
	}
	return c, err
}

func (p *Postgres) GetConsumer(ctx context.Context, id string) (model.ConsumerSubscription, error) {
	c, err := scanConsumer(p.pool.QueryRow(ctx,
		`SELECT `+consumerColumns+` FROM consumer_subscriptions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrSubscriptionNotFound
	}
	if err != nil {
		return c, fmt.Errorf("get consumer subscription %s: %w", id, err)
	}
	return c, nil
}

func (p *Postgres) listConsumers(ctx context.Context, where string, arg any) ([]model.ConsumerSubscription, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+consumerColumns+` FROM consumer_subscriptions WHERE `+where+` ORDER BY created_at`, arg)
	if err != nil {
		return nil, fmt.Errorf("list consumer subscriptions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ConsumerSubscription, error) {
		return scanConsumer(row)
	})
}

func (p *Postgres) ListConsumers(ctx context.Context, userID string) ([]model.ConsumerSubscription, error) {
	return p.listConsumers(ctx, "user_id = $1", userID)
}

func (p *Postgres) ListConsumersByStatus(ctx context.Context, status model.SubscriptionStatus) ([]model.ConsumerSubscription, error) {
	return p.listConsumers(ctx, "status = $1", string(status))
}

func (p *Postgres) AdvanceCursor(ctx context.Context, id string, lastRecordID int64, deliveredAt time.Time) error {
	tag, err := p.pool.Exec(ctx, `UPDATE consumer_subscriptions
		SET last_record_id = GREATEST(last_record_id, $2), failed_attempts = 0, last_delivered = $3
		WHERE id = $1`, id, lastRecordID, deliveredAt)
	if err != nil {
		return fmt.Errorf("advance cursor %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (p *Postgres) RecordDeliveryFailure(ctx context.Context, id string, maxFailed int) (model.ConsumerSubscription, error) {
	c, err := scanConsumer(p.pool.QueryRow(ctx, `UPDATE consumer_subscriptions
		SET failed_attempts = failed_attempts + 1,
			status = CASE WHEN status = 'live' AND $2 > 0 AND failed_attempts + 1 >= $2 THEN 'error' ELSE status END
		WHERE id = $1
		RETURNING `+consumerColumns, id, maxFailed))
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrSubscriptionNotFound
	}
	if err != nil {
		return c, fmt.Errorf("record delivery failure %s: %w", id, err)
	}
	return c, nil
}

const recordColumns = `id, operator_ref, vehicle_ref, line_ref, published_line_name, direction_ref,
	recorded_at_time, valid_until_time, longitude, latitude, bearing, occupancy,
	origin_ref, origin_name, destination_ref, destination_name, origin_aimed_departure_time,
	dated_vehicle_journey_ref, data_frame_ref, block_ref, vehicle_journey_ref, producer_ref,
	route_id, trip_id, subscription_id, item_id`

// recordInsertLock is the advisory lock key held while vehicle_activity ids
// are drawn and committed. Holding it makes commit order follow id order, so
// a reader that sees id N also sees every committed id below N and a cursor
// can never skip a record that commits late.
const recordInsertLock int64 = 0x5356485f52454353

func (p *Postgres) InsertRecords(ctx context.Context, recs []model.VehicleActivityRecord) ([]model.VehicleActivityRecord, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`SELECT pg_advisory_xact_lock($1)`, recordInsertLock)
	for _, r := range recs {
		batch.Queue(`INSERT INTO vehicle_activity (`+strings.TrimPrefix(recordColumns, "id, ")+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
				$17, $18, $19, $20, $21, $22, $23, $24, $25)
			RETURNING id`,
			r.OperatorRef, r.VehicleRef, r.LineRef, r.PublishedLineName, r.DirectionRef,
			r.RecordedAtTime, r.ValidUntilTime, r.Longitude, r.Latitude, r.Bearing, r.Occupancy,
			r.OriginRef, r.OriginName, r.DestinationRef, r.DestinationName, r.OriginAimedDepartureTime,
			r.DatedVehicleJourneyRef, r.DataFrameRef, r.BlockRef, r.VehicleJourneyRef, r.ProducerRef,
			r.RouteID, r.TripID, r.SubscriptionID, r.ItemID)
	}
	out, err := func() ([]model.VehicleActivityRecord, error) {
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("lock vehicle activity ids: %w", err)
		}
		out := make([]model.VehicleActivityRecord, len(recs))
		for i, r := range recs {
			if err := br.QueryRow().Scan(&r.ID); err != nil {
				return nil, fmt.Errorf("insert vehicle activity: %w", err)
			}
			out[i] = r
		}
		return out, br.Close()
	}()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit vehicle activity: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.CollectableRow) (model.VehicleActivityRecord, error) {
	var r model.VehicleActivityRecord
	err := row.Scan(&r.ID, &r.OperatorRef, &r.VehicleRef, &r.LineRef, &r.PublishedLineName, &r.DirectionRef,
		&r.RecordedAtTime, &r.ValidUntilTime, &r.Longitude, &r.Latitude, &r.Bearing, &r.Occupancy,
		&r.OriginRef, &r.OriginName, &r.DestinationRef, &r.DestinationName, &r.OriginAimedDepartureTime,
		&r.DatedVehicleJourneyRef, &r.DataFrameRef, &r.BlockRef, &r.VehicleJourneyRef, &r.ProducerRef,
		&r.RouteID, &r.TripID, &r.SubscriptionID, &r.ItemID)
	return r, err
}

// filterClause renders f as SQL conditions, appending bind values to args.
func filterClause(f model.Filter, args *[]any) string {
	var conds []string
	bind := func(v any) string {
		*args = append(*args, v)
		return fmt.Sprintf("$%d", len(*args))
	}
	if bb := f.BoundingBox; bb != nil {
		conds = append(conds, fmt.Sprintf("longitude BETWEEN %s AND %s AND latitude BETWEEN %s AND %s",
			bind(bb.MinLongitude), bind(bb.MaxLongitude), bind(bb.MinLatitude), bind(bb.MaxLatitude)))
	}
	if len(f.OperatorRefs) > 0 {
		conds = append(conds, "operator_ref = ANY("+bind(f.OperatorRefs)+")")
	}
	if len(f.LineRefs) > 0 {
		conds = append(conds, "line_ref = ANY("+bind(f.LineRefs)+")")
	}
	if len(f.SubscriptionIDs) > 0 {
		conds = append(conds, "subscription_id = ANY("+bind(f.SubscriptionIDs)+")")
	}
	if f.VehicleRef != "" {
		conds = append(conds, "vehicle_ref = "+bind(f.VehicleRef))
	}
	if f.ProducerRef != "" {
		conds = append(conds, "producer_ref = "+bind(f.ProducerRef))
	}
	if f.OriginRef != "" {
		conds = append(conds, "origin_ref = "+bind(f.OriginRef))
	}
	if f.DestinationRef != "" {
		conds = append(conds, "destination_ref = "+bind(f.DestinationRef))
	}
	if len(conds) == 0 {
		return "TRUE"
	}
	return strings.Join(conds, " AND ")
}

func (p *Postgres) CurrentFleet(ctx context.Context, f model.Filter) ([]model.VehicleActivityRecord, error) {
	var args []any
	where := filterClause(f, &args)
	q := `SELECT ` + recordColumns + ` FROM (
			SELECT DISTINCT ON (operator_ref, vehicle_ref) ` + recordColumns + `
			FROM vehicle_activity
			ORDER BY operator_ref, vehicle_ref, recorded_at_time DESC, id DESC
		) latest WHERE ` + where + ` ORDER BY operator_ref, vehicle_ref`
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("current fleet: %w", err)
	}
	return pgx.CollectRows(rows, scanRecord)
}

func (p *Postgres) RecordsAfter(ctx context.Context, afterID int64, f model.Filter, limit int) ([]model.VehicleActivityRecord, error) {
	args := []any{afterID}
	where := filterClause(f, &args)
	q := `SELECT ` + recordColumns + ` FROM vehicle_activity WHERE id > $1 AND ` + where + ` ORDER BY id`
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("records after %d: %w", afterID, err)
	}
	return pgx.CollectRows(rows, scanRecord)
}

func (p *Postgres) MaxRecordID(ctx context.Context) (int64, error) {
	var id int64
	if err := p.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM vehicle_activity`).Scan(&id); err != nil {
		return 0, fmt.Errorf("max record id: %w", err)
	}
	return id, nil
}

func (p *Postgres) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM vehicle_activity WHERE valid_until_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired records: %w", err)
	}
	p.logger.Info("expired records removed", "count", tag.RowsAffected(), "cutoff", cutoff)
	return tag.RowsAffected(), nil
}
