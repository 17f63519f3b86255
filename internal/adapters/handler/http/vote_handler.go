package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/ports"
)

type VoteHandler struct {
	service     ports.VoteService
	aggregation ports.AggregationService
}

func NewVoteHandler(service ports.VoteService, aggregation ports.AggregationService) *VoteHandler {
	return &VoteHandler{
		service:     service,
		aggregation: aggregation,
	}
}

type voteRequest struct {
	PollID   uuid.UUID `json:"poll_id"`
	OptionID uuid.UUID `json:"option_id"`
}

func (h *VoteHandler) Cast(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PollID == uuid.Nil || req.OptionID == uuid.Nil {
		http.Error(w, "poll_id and option_id are required", http.StatusBadRequest)
		return
	}

	userID, ok := r.Context().Value(UserIDKey).(uuid.UUID)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	vote, err := h.service.Cast(r.Context(), ports.CastVoteInput{
		PollID:   req.PollID,
		OptionID: req.OptionID,
		UserID:   userID,
	})
	if err != nil {
		h.writeVoteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, vote)
}

func (h *VoteHandler) Change(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PollID == uuid.Nil || req.OptionID == uuid.Nil {
		http.Error(w, "poll_id and option_id are required", http.StatusBadRequest)
		return
	}

	userID, ok := r.Context().Value(UserIDKey).(uuid.UUID)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	vote, err := h.service.ChangeVote(r.Context(), ports.CastVoteInput{
		PollID:   req.PollID,
		OptionID: req.OptionID,
		UserID:   userID,
	})
	if err != nil {
		h.writeVoteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, vote)
}

func (h *VoteHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	pollID, err := uuid.Parse(chi.URLParam(r, "pollID"))
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	userID, ok := r.Context().Value(UserIDKey).(uuid.UUID)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	if err := h.service.Cancel(r.Context(), pollID, userID); err != nil {
		h.writeVoteError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "vote cancelled")
}

func (h *VoteHandler) Check(w http.ResponseWriter, r *http.Request) {
	pollID, err := uuid.Parse(chi.URLParam(r, "pollID"))
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	userID, ok := r.Context().Value(UserIDKey).(uuid.UUID)
	if !ok {
		http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
		return
	}

	optionID, hasVoted, err := h.service.VotedOption(r.Context(), pollID, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"poll_id":   pollID,
		"user_id":   userID,
		"has_voted": hasVoted,
	}
	if hasVoted {
		resp["voted_option_id"] = optionID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *VoteHandler) Results(w http.ResponseWriter, r *http.Request) {
	pollID, err := uuid.Parse(chi.URLParam(r, "pollID"))
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	optionIDs, err := parseOptionIDs(r.URL.Query().Get("optionIds"))
	if err != nil {
		http.Error(w, "invalid optionIds parameter", http.StatusBadRequest)
		return
	}

	tally, err := h.aggregation.GetTally(r.Context(), pollID, optionIDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, tally)
}

func (h *VoteHandler) Stats(w http.ResponseWriter, r *http.Request) {
	pollID, err := uuid.Parse(chi.URLParam(r, "pollID"))
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	stats, err := h.aggregation.GetStats(r.Context(), pollID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *VoteHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	votes, err := h.service.VoteHistory(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if votes == nil {
		votes = []domain.Vote{}
	}

	writeJSON(w, http.StatusOK, votes)
}

func (h *VoteHandler) RebuildCache(w http.ResponseWriter, r *http.Request) {
	pollID, err := uuid.Parse(chi.URLParam(r, "pollID"))
	if err != nil {
		http.Error(w, "invalid poll id", http.StatusBadRequest)
		return
	}

	optionIDs, err := parseOptionIDs(r.URL.Query().Get("optionIds"))
	if err != nil {
		http.Error(w, "invalid optionIds parameter", http.StatusBadRequest)
		return
	}

	if err := h.aggregation.RebuildTally(r.Context(), pollID, optionIDs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeMessage(w, http.StatusOK, "tally cache rebuilt")
}

func (h *VoteHandler) writeVoteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyVoted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrBusy):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, domain.ErrVoteNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parseOptionIDs(raw string) ([]uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
