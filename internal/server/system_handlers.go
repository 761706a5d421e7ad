package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel-dashboard/internal/dataaccess"
	"github.com/aristath/sentinel-dashboard/internal/domain"
	"github.com/aristath/sentinel-dashboard/internal/scheduler"
)

// SystemHandlers serves cache diagnostics and page visibility reports.
type SystemHandlers struct {
	data       *dataaccess.Facade
	visibility *scheduler.Visibility
	log        zerolog.Logger
}

// NewSystemHandlers creates system handlers.
func NewSystemHandlers(data *dataaccess.Facade, visibility *scheduler.Visibility, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		data:       data,
		visibility: visibility,
		log:        log.With().Str("handler", "system").Logger(),
	}
}

// CacheKeyInfo describes one live cache entry.
type CacheKeyInfo struct {
	Key          string  `json:"key"`
	Priority     string  `json:"priority"`
	AgeSeconds   float64 `json:"age_seconds"`
	RemainingTTL float64 `json:"remaining_ttl_seconds"`
}

// HandleCacheKeys handles GET /api/cache/keys
func (h *SystemHandlers) HandleCacheKeys(w http.ResponseWriter, r *http.Request) {
	store := h.data.Cache()
	keys := store.Keys()

	infos := make([]CacheKeyInfo, 0, len(keys))
	for _, key := range keys {
		meta, ok := store.GetWithMeta(key)
		if !ok {
			continue // expired since Keys was taken
		}
		infos = append(infos, CacheKeyInfo{
			Key:          key,
			Priority:     meta.Priority.String(),
			AgeSeconds:   meta.Age.Seconds(),
			RemainingTTL: meta.RemainingTTL.Seconds(),
		})
	}

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"keys":  infos,
		"count": len(infos),
	})
}

// HandleCacheClear handles DELETE /api/cache?prefix=. Without a prefix everything is dropped.
func (h *SystemHandlers) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	removed := h.data.Invalidate("manual", prefix)

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"prefix":  prefix,
		"removed": removed,
	})
}

type visibilityRequest struct {
	// State mirrors document.visibilityState: "visible" or "hidden".
	State string `json:"state"`
}

// HandleVisibility handles POST /api/visibility. The UI refresh job only runs while visible.
func (h *SystemHandlers) HandleVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	var visible bool
	switch req.State {
	case "visible":
		visible = true
	case "hidden":
		visible = false
	default:
		writeDomainError(w, h.log, domain.NewValidationError("state", "must be visible or hidden"))
		return
	}

	if h.visibility.Set(visible) {
		h.log.Debug().Str("state", req.State).Msg("Page visibility changed")
	}
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"state":      req.State,
		"changed_at": h.visibility.ChangedAt().Format(time.RFC3339),
	})
}
