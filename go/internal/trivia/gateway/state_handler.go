package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/internal/trivia/room"
	"github.com/mcdev12/trivia/go/internal/trivia/store"
)

// StateProvider reads the live room state
type StateProvider interface {
	State(ctx context.Context) (room.Snapshot, bool)
}

var (
	errRoomStopped = errors.New("session unavailable")
	errNoResults   = errors.New("results are not recorded")
	errBadLimit    = errors.New("limit must be a positive integer")
)

// SessionStateResponse is the live state of the session. It is public, so
// it carries how many players answered but never who.
type SessionStateResponse struct {
	Active    bool            `json:"active"`
	SessionID string          `json:"session_id,omitempty"`
	State     string          `json:"state,omitempty"`
	TimeLeft  int             `json:"time_left_sec"`
	Running   bool            `json:"running"`
	Played    int             `json:"played"`
	Total     int             `json:"total"`
	Displays  int             `json:"displays"`
	Question  *OpenQuestion   `json:"question,omitempty"`
	Users     []UserStateInfo `json:"users"`
	Answered  int             `json:"answered_count"` // names go to displays over the socket only
}

// OpenQuestion is the question shown to clients; the answer key is never included
type OpenQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Answers []string `json:"answers"`
	Photo   string   `json:"photo,omitempty"`
}

// UserStateInfo is a connected player
type UserStateInfo struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// QuestionResultInfo is an archived question outcome
type QuestionResultInfo struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	QuestionID    string    `json:"question_id"`
	Text          string    `json:"text"`
	Photo         string    `json:"photo,omitempty"`
	CorrectAnswer int       `json:"correct_answer"`
	AnsweredCount int       `json:"answered_count"`
	CorrectCount  int       `json:"correct_count"`
	ClosedAt      time.Time `json:"closed_at"`
}

// FinalScoreInfo is a player's place in a finished game
type FinalScoreInfo struct {
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	Rank       int       `json:"rank"`
	FinishedAt time.Time `json:"finished_at"`
}

const defaultResultsLimit = 20

// StateHandler handles HTTP requests for session state and results
type StateHandler struct {
	stateProvider StateProvider
	results       store.Store
}

// NewStateHandler creates a new state handler. results may be nil.
func NewStateHandler(provider StateProvider, results store.Store) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
		results:       results,
	}
}

// HandleGetSessionState handles GET /api/session/state
func (h *StateHandler) HandleGetSessionState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, ok := h.stateProvider.State(r.Context())
	if !ok {
		http.Error(w, errRoomStopped.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, sessionState(snap))
}

func sessionState(snap room.Snapshot) SessionStateResponse {
	resp := SessionStateResponse{
		Running:  snap.Running,
		Played:   snap.Played,
		Total:    snap.Total,
		Displays: snap.Displays,
		Users:    []UserStateInfo{},
	}
	if snap.Session == nil {
		return resp
	}

	v := snap.Session
	resp.Active = true
	resp.SessionID = v.SessionID
	resp.State = string(v.State)
	resp.TimeLeft = v.TimeLeft
	if v.Question != nil {
		resp.Question = &OpenQuestion{
			ID:      v.Question.ID,
			Text:    v.Question.Text,
			Answers: v.Question.Answers,
			Photo:   v.Question.Photo,
		}
	}
	for _, u := range v.Users {
		resp.Users = append(resp.Users, UserStateInfo{Name: u.Name, Score: u.Score})
	}
	resp.Answered = len(v.Answered)
	return resp
}

// HandleGetResults handles GET /api/results. With session_id it returns
// the final scores of that game, otherwise the most recent question results.
func (h *StateHandler) HandleGetResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.results == nil {
		http.Error(w, "Results are not recorded", http.StatusNotFound)
		return
	}

	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		scores, err := h.finalScores(r.Context(), sessionID)
		if err != nil {
			http.Error(w, "Failed to get final scores", http.StatusInternalServerError)
			return
		}
		writeJSON(w, scores)
		return
	}

	limit := defaultResultsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := h.recentResults(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to get results", http.StatusInternalServerError)
		return
	}
	writeJSON(w, recs)
}

func (h *StateHandler) finalScores(ctx context.Context, sessionID string) ([]FinalScoreInfo, error) {
	if h.results == nil {
		return nil, errNoResults
	}
	scores, err := h.results.FinalScores(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to get final scores")
		return nil, err
	}
	out := make([]FinalScoreInfo, 0, len(scores))
	for _, s := range scores {
		out = append(out, FinalScoreInfo{Name: s.Name, Score: s.Score, Rank: s.Rank, FinishedAt: s.FinishedAt})
	}
	return out, nil
}

func (h *StateHandler) recentResults(ctx context.Context, limit int) ([]QuestionResultInfo, error) {
	if h.results == nil {
		return nil, errNoResults
	}
	recs, err := h.results.RecentResults(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to get recent results")
		return nil, err
	}
	out := make([]QuestionResultInfo, 0, len(recs))
	for _, rec := range recs {
		out = append(out, QuestionResultInfo{
			ID:            rec.ID.String(),
			SessionID:     rec.SessionID,
			QuestionID:    rec.QuestionID,
			Text:          rec.Text,
			Photo:         rec.Photo,
			CorrectAnswer: rec.CorrectAnswer,
			AnsweredCount: rec.AnsweredCount,
			CorrectCount:  rec.CorrectCount,
			ClosedAt:      rec.ClosedAt,
		})
	}
	return out, nil
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/session/state", h.HandleGetSessionState)
	mux.HandleFunc("/api/results", h.HandleGetResults)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
