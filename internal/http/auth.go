package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hperssn/focusflow/internal/domain"
	"github.com/hperssn/focusflow/internal/users"
)

type loginRequest struct {
	Subject string `json:"auth0Id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// loginUser creates the user on first login and refreshes it afterwards. The
// subject falls back to the proxy-asserted caller.
func loginUser(svc *users.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondFailure(w, r, err)
			return
		}
		if req.Subject == "" {
			req.Subject = CallerFrom(r.Context())
		}

		user, err := svc.Login(r.Context(), domain.Identity{
			Subject: req.Subject,
			Email:   req.Email,
			Name:    req.Name,
			Picture: req.Picture,
		})
		if err != nil {
			respondFailure(w, r, err)
			return
		}

		respondJSON(w, user, http.StatusOK)
	}
}

func getUser(svc *users.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := svc.GetBySubject(r.Context(), chi.URLParam(r, "subject"))
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		respondJSON(w, user, http.StatusOK)
	}
}

func updatePreferences(svc *users.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			EmailNotifications *users.PreferencesPatch `json:"emailNotifications"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			respondFailure(w, r, err)
			return
		}

		var patch users.PreferencesPatch
		if req.EmailNotifications != nil {
			patch = *req.EmailNotifications
		}

		user, err := svc.UpdatePreferences(r.Context(), chi.URLParam(r, "userId"), patch)
		if err != nil {
			respondFailure(w, r, err)
			return
		}
		respondJSON(w, user, http.StatusOK)
	}
}
