package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	syncx "github.com/mind-engage/placement-exam/internal/sync"
)

// EventFeed is the replication log read side; *syncx.EventRepo implements it.
type EventFeed interface {
	Since(ctx context.Context, after int64, limit int) ([]syncx.Event, error)
}

type eventView struct {
	Offset    int64           `json:"offset"`
	SiteID    string          `json:"siteId"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"createdAt"`
}

type eventPage struct {
	Events []eventView `json:"events"`
	Next   int64       `json:"next"`
}

// EventsHandler serves GET /api/sync/events?after=&limit=. Next is the
// offset to pass as after on the following call; it equals after when the
// page is empty.
func EventsHandler(feed EventFeed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var after int64
		if raw := q.Get("after"); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || v < 0 {
				badRequest(w, "after must be a non-negative integer")
				return
			}
			after = v
		}
		limit := 100
		if raw := q.Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 || v > syncx.MaxPage {
				badRequest(w, "limit must be between 1 and "+strconv.Itoa(syncx.MaxPage))
				return
			}
			limit = v
		}

		events, err := feed.Since(r.Context(), after, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		page := eventPage{Events: make([]eventView, 0, len(events)), Next: after}
		for _, e := range events {
			data := json.RawMessage(e.DataJSON)
			if !json.Valid(data) {
				data = json.RawMessage("null")
			}
			page.Events = append(page.Events, eventView{
				Offset:    e.Offset,
				SiteID:    e.SiteID,
				Type:      e.Type,
				Key:       e.Key,
				Data:      data,
				CreatedAt: e.CreatedAt,
			})
			page.Next = e.Offset
		}
		writeJSON(w, http.StatusOK, page)
	}
}
