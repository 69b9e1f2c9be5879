package main

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
	maxMessageLength    = 4000
)

// GET /matches/{id}/messages?limit=50&before=2025-09-16T08:00:00Z
// Returns the newest page older than before, oldest first.
func (s *server) listMessages(w http.ResponseWriter, r *http.Request, matchID string) {
	limit, ok := intParam(r, "limit", defaultMessageLimit, maxMessageLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit")
		return
	}
	var before time.Time
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_before")
			return
		}
		before = t
	}

	me, ok := s.currentCreator(w, r)
	if !ok {
		return
	}
	if _, ok := s.participantMatch(w, r, me, matchID); !ok {
		return
	}

	msgs, err := s.store.messagesForMatch(r.Context(), matchID, before, limit)
	if err != nil {
		s.log.Error("load messages", append(requestFields(r), zap.String("match_id", matchID), zap.Error(err))...)
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*Message{"messages": msgs})
}

// POST /matches/{id}/messages
// Stores a message; the backend's realtime feed delivers it to the peer.
func (s *server) sendMessage(w http.ResponseWriter, r *http.Request, matchID string) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "empty_message")
		return
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		writeError(w, http.StatusBadRequest, "message_too_long")
		return
	}

	me, ok := s.currentCreator(w, r)
	if !ok {
		return
	}
	m, ok := s.participantMatch(w, r, me, matchID)
	if !ok {
		return
	}
	if m.Status != MatchAccepted {
		writeError(w, http.StatusConflict, "match_not_accepted")
		return
	}

	msg := &Message{MatchID: m.ID, SenderID: me.ID, Content: content}
	if err := s.store.insertMessage(r.Context(), msg); err != nil {
		s.log.Error("save message", append(requestFields(r), zap.String("match_id", matchID), zap.Error(err))...)
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
