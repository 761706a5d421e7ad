package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-dashboard/internal/dataaccess"
	"github.com/aristath/sentinel-dashboard/internal/domain"
	"github.com/aristath/sentinel-dashboard/internal/session"
)

// UserHandlers serves the personal and auth routes. Every personal route answers 401
// without touching the backend when no session is held.
type UserHandlers struct {
	data *dataaccess.Facade
	log  zerolog.Logger
}

// NewUserHandlers creates user handlers.
func NewUserHandlers(data *dataaccess.Facade, log zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		data: data,
		log:  log.With().Str("handler", "user").Logger(),
	}
}

// HandlePortfolio handles GET /api/portfolio/{userID}
func (h *UserHandlers) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.data.Portfolio(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, portfolio)
}

// HandleTransaction handles POST /api/portfolio/transaction
func (h *UserHandlers) HandleTransaction(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := decodeJSON(r, &tx); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	if err := h.data.RecordTransaction(r.Context(), tx); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusCreated, map[string]string{"status": "recorded"})
}

// HandleWatchlist handles GET /api/watchlist/{userID}
func (h *UserHandlers) HandleWatchlist(w http.ResponseWriter, r *http.Request) {
	watchlist, err := h.data.Watchlist(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, watchlist)
}

// HandleWatchlistAdd handles POST /api/watchlist/add
func (h *UserHandlers) HandleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	h.changeWatchlist(w, r, h.data.AddToWatchlist, "added")
}

// HandleWatchlistRemove handles POST /api/watchlist/remove
func (h *UserHandlers) HandleWatchlistRemove(w http.ResponseWriter, r *http.Request) {
	h.changeWatchlist(w, r, h.data.RemoveFromWatchlist, "removed")
}

func (h *UserHandlers) changeWatchlist(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, userID, ticker string) error,
	status string,
) {
	var change domain.WatchlistChange
	if err := decodeJSON(r, &change); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	if err := apply(r.Context(), change.UserID, change.Ticker); err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]string{"status": status, "ticker": change.Ticker})
}

// HandleUserData handles GET /api/user/{userID}, the batched personal bundle
func (h *UserHandlers) HandleUserData(w http.ResponseWriter, r *http.Request) {
	data, err := h.data.UserData(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, data)
}

// HandleLogin handles POST /api/auth/login
func (h *UserHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var creds session.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	user, err := h.data.Login(r.Context(), creds)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{"user": user, "session": h.data.Session()})
}

// HandleRegister handles POST /api/auth/register
func (h *UserHandlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var reg session.Registration
	if err := decodeJSON(r, &reg); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	user, err := h.data.Register(r.Context(), reg)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusCreated, map[string]interface{}{"user": user, "session": h.data.Session()})
}

// HandleLogout handles POST /api/auth/logout. The local session is cleared even
// when persisting the cleared state fails.
func (h *UserHandlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.data.Logout(); err != nil {
		h.log.Warn().Err(err).Msg("Logout did not clear persisted credentials")
	}
	writeJSON(w, h.log, http.StatusOK, h.data.Session())
}

// HandleSession handles GET /api/auth/session
func (h *UserHandlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, h.data.Session())
}
