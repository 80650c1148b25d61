package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/focusflow/internal/analytics"
	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/storage"
	"github.com/hperssn/focusflow/internal/tracking"
)

const defaultHistoryLimit = 100

type Tracker interface {
	Track(ctx context.Context, req tracking.Request) (tracking.Response, error)
}

func trackFocus(t Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tracking.Request
		if err := decodeJSON(w, r, &req); err != nil {
			respondFailure(w, r, err)
			return
		}

		resp, err := t.Track(r.Context(), req)
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		respondJSON(w, resp, http.StatusOK)
	}
}

func focusHistory(repo storage.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := storage.FocusDataQuery{Limit: defaultHistoryLimit}
		var err error

		if q.Since, err = parseTime(r.URL.Query().Get("startDate")); err != nil {
			respondFailure(w, r, badRequest("invalid startDate"))
			return
		}
		if q.Until, err = parseTime(r.URL.Query().Get("endDate")); err != nil {
			respondFailure(w, r, badRequest("invalid endDate"))
			return
		}
		if q.Limit, err = positiveInt(r.URL.Query().Get("limit"), defaultHistoryLimit); err != nil {
			respondFailure(w, r, badRequest("invalid limit"))
			return
		}

		data, err := repo.ListFocusData(r.Context(), chi.URLParam(r, "userId"), q)
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		if data == nil {
			data = []domain.FocusData{}
		}
		respondJSON(w, data, http.StatusOK)
	}
}

func focusAnalytics(repo storage.Repository, loc *time.Location, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := positiveInt(r.URL.Query().Get("days"), analytics.DefaultDays)
		if err != nil {
			respondFailure(w, r, badRequest("invalid days"))
			return
		}

		at := now()
		data, err := repo.ListFocusData(r.Context(), chi.URLParam(r, "userId"), storage.FocusDataQuery{
			Since:     analytics.Window(at, days),
			Ascending: true,
		})
		if err != nil {
			respondFailure(w, r, err)
			return
		}

		points := make([]domain.Point, len(data))
		for i, d := range data {
			points[i] = d.Point
		}
		respondJSON(w, analytics.Reduce(points, at, days, loc), http.StatusOK)
	}
}

// parseTime accepts RFC 3339 timestamps or plain dates. Empty means unset.
func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func positiveInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
