package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/placement-exam/internal/exam"
	"github.com/mind-engage/placement-exam/internal/records"
)

// MaxPage caps one Since read.
const MaxPage = 1000

type Event struct {
	Offset    int64
	SiteID    string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

// EventRepo appends exam events to the event_log table.
type EventRepo struct {
	db     *sql.DB
	siteID string
	now    func() time.Time
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID, now: time.Now}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, r.now().Unix())
	return err
}

// Publish implements exam.EventSink.
func (r *EventRepo) Publish(ctx context.Context, e exam.Event) error {
	b, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	return r.Append(ctx, Event{Type: e.Type, Key: e.Key, DataJSON: string(b)})
}

// Since returns up to limit events with an offset greater than after, oldest
// first. Replicas page through the log by passing the last offset they saw.
func (r *EventRepo) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > MaxPage {
		limit = MaxPage
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", site_id, typ, key, data, created_at
		   FROM event_log WHERE "offset" > $1 ORDER BY "offset" LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: event log: %v", records.ErrUnavailable, err)
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: event log: %v", records.ErrUnavailable, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: event log: %v", records.ErrUnavailable, err)
	}
	return out, nil
}

// LogSink records events as structured log lines. It backs the file store,
// which has no event table.
type LogSink struct{ Log *zap.Logger }

func (s LogSink) Publish(_ context.Context, e exam.Event) error {
	s.Log.Info("event", zap.String("type", e.Type), zap.String("key", e.Key), zap.Any("data", e.Data))
	return nil
}
