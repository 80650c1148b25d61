package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/events"
	"github.com/hperssn/focusflow/internal/session"
)

const keepAliveInterval = 15 * time.Second

// StreamSessionEvents sends the session as a snapshot event and then every
// point scored for it until the session ends or the client goes away.
func StreamSessionEvents(svc *session.Service, hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		flusher, ok := w.(http.Flusher)
		if !ok {
			respondError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		stream, cancel := hub.Subscribe(id)
		defer cancel()

		sess, err := svc.Get(r.Context(), id)
		if err != nil {
			respondFailure(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if err := writeEvent(w, "snapshot", sess); err != nil {
			return
		}
		flusher.Flush()

		if sess.Status == domain.StatusCompleted || sess.Status == domain.StatusCancelled {
			return
		}

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case e, ok := <-stream:
				if !ok {
					return
				}
				if err := writeEvent(w, string(e.Type), e); err != nil {
					return
				}
				flusher.Flush()
				if e.Type == events.TypeSessionEnded {
					return
				}

			case <-keepAlive.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()

			case <-r.Context().Done():
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
