package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/events"
	"github.com/hperssn/focusflow/internal/session"
)

func createSession(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string `json:"userId"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondFailure(w, r, err)
			return
		}
		if req.UserID == "" {
			respondError(w, "User ID required", http.StatusBadRequest)
			return
		}

		sess, _, err := svc.CreateOrResume(r.Context(), req.UserID)
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		respondJSON(w, sess, http.StatusOK)
	}
}

// activeSession answers 200 with null when the user has nothing running.
func activeSession(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.Active(r.Context(), chi.URLParam(r, "userId"))
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		respondJSON(w, sess, http.StatusOK)
	}
}

func sessionHistory(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := positiveInt(r.URL.Query().Get("limit"), session.DefaultHistoryLimit)
		if err != nil {
			respondFailure(w, r, badRequest("invalid limit"))
			return
		}

		sessions, err := svc.History(r.Context(), chi.URLParam(r, "userId"), limit)
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		if sessions == nil {
			sessions = []*domain.Session{}
		}
		respondJSON(w, sessions, http.StatusOK)
	}
}

func getSession(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		respondJSON(w, sess, http.StatusOK)
	}
}

func updateSession(svc *session.Service, pub events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch session.Patch
		if err := decodeJSON(w, r, &patch); err != nil {
			respondFailure(w, r, err)
			return
		}

		sess, err := svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		if sess.Status == domain.StatusCompleted {
			publishEnded(r.Context(), pub, sess)
		}
		respondJSON(w, sess, http.StatusOK)
	}
}

func endSession(svc *session.Service, pub events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.End(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		publishEnded(r.Context(), pub, sess)
		respondJSON(w, sess, http.StatusOK)
	}
}

func publishEnded(ctx context.Context, pub events.Publisher, sess *domain.Session) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, events.SessionEnded(sess)); err != nil {
		LoggerFrom(ctx).Warn("failed to publish session end", zap.String("session_id", sess.ID), zap.Error(err))
	}
}
