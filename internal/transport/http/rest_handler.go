package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"vocab-quiz-service/internal/app"
	"vocab-quiz-service/internal/domain"
)

// LeaderboardReader lists the top streaks of a shared leaderboard.
type LeaderboardReader interface {
	Top(ctx context.Context, n int) ([]domain.LeaderboardSnapshot, error)
}

// RESTHandler serves the statistics and account endpoints.
type RESTHandler struct {
	service     *app.LearningService
	leaderboard LeaderboardReader
	log         logrus.FieldLogger
}

func NewRESTHandler(service *app.LearningService, leaderboard LeaderboardReader, log logrus.FieldLogger) *RESTHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RESTHandler{service: service, leaderboard: leaderboard, log: log.WithField("component", "rest")}
}

// Register mounts the endpoints on mux.
func (h *RESTHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/stats", h.Stats)
	mux.HandleFunc("/streak", h.Streak)
	mux.HandleFunc("/streak/reset", h.ResetStreak)
	mux.HandleFunc("/account/reset", h.ResetAccount)
	mux.HandleFunc("/topics/reset", h.ResetTopic)
	mux.HandleFunc("/leaderboard", h.Leaderboard)
}

// Stats answers GET /stats?range=daily|weekly|monthly&count=N. kind is accepted as
// an alias of range.
func (h *RESTHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	kind := q.Get("range")
	if kind == "" {
		kind = q.Get("kind")
	}
	rng := domain.Range{Kind: domain.RangeKind(kind), Count: 7}
	if rng.Kind == "" {
		rng.Kind = domain.RangeDaily
	}
	if raw := q.Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid count", http.StatusBadRequest)
			return
		}
		rng.Count = n
	}
	buckets, err := h.service.Stats(rng)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, buckets)
}

// Streak answers GET /streak.
func (h *RESTHandler) Streak(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	h.writeJSON(w, h.service.Streak())
}

// ResetStreak handles POST /streak/reset.
func (h *RESTHandler) ResetStreak(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	h.writeJSON(w, h.service.ResetStreak())
}

// ResetAccount handles POST /account/reset.
func (h *RESTHandler) ResetAccount(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	h.service.ResetAccount()
	h.writeJSON(w, h.service.Streak())
}

// ResetTopic handles POST /topics/reset with the same query as the websocket.
func (h *RESTHandler) ResetTopic(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	key, ok := topicFromQuery(r)
	if !ok {
		http.Error(w, "missing folder, or level, chapter and topic", http.StatusBadRequest)
		return
	}
	h.service.ResetTopic(key)
	w.WriteHeader(http.StatusNoContent)
}

// Leaderboard answers GET /leaderboard?limit=N.
func (h *RESTHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.leaderboard == nil {
		http.Error(w, "leaderboard not configured", http.StatusNotFound)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	top, err := h.leaderboard.Top(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Warn("read leaderboard")
		http.Error(w, "leaderboard unavailable", http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, top)
}

func (h *RESTHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Debug("write response")
	}
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}
