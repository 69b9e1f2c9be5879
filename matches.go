package main

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Match lifecycle
//
// request: creates pending (or accepts when the other side already asked).
// accept: pending → accepted, by the addressee.
// reject: pending → rejected, by the addressee.
// Repeating a transition that already happened is a no-op; anything else is 409.

// stateError aborts a transaction with a client-facing status.
type stateError struct {
	status int
	code   string
}

func (e *stateError) Error() string { return e.code }

func (s *server) writeTxError(w http.ResponseWriter, r *http.Request, err error) {
	var serr *stateError
	if errors.As(err, &serr) {
		writeError(w, serr.status, serr.code)
		return
	}
	s.log.Error("match transaction", append(requestFields(r), zap.Error(err))...)
	writeError(w, http.StatusInternalServerError, "db_error")
}

type matchView struct {
	*Match
	Direction string   `json:"direction"`
	Peer      *Creator `json:"peer"`
}

// GET /matches lists the caller's matches with the other creator's profile.
// POST /matches requests a match with {creatorId}.
func (s *server) matchesHandler() http.HandlerFunc {
	return s.authenticate(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.listMatches(w, r)
		case http.MethodPost:
			s.requestMatch(w, r)
		default:
			methodNotAllowed(w)
		}
	})
}

func (s *server) listMatches(w http.ResponseWriter, r *http.Request) {
	me, ok := s.currentCreator(w, r)
	if !ok {
		return
	}
	matches, err := s.store.matchesForCreator(r.Context(), me.ID)
	if err != nil {
		s.log.Error("list matches", append(requestFields(r), zap.String("creator_id", me.ID), zap.Error(err))...)
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	// Queue every peer before resolving so the loader batches them into one query.
	loader := GetDataLoadersFromContext(r.Context())
	if loader == nil {
		loader = NewDataLoaders(s.store)
	}
	peerIDs := make([]string, len(matches))
	for i, m := range matches {
		peerIDs[i] = m.Peer(me.ID)
	}
	thunk := loader.CreatorLoader.LoadMany(r.Context(), peerIDs)
	peers, errs := thunk()

	out := make([]matchView, 0, len(matches))
	for i, m := range matches {
		if errs != nil && errs[i] != nil {
			if !errors.Is(errs[i], errNotFound) {
				s.log.Error("load peer", append(requestFields(r), zap.String("match_id", m.ID), zap.Error(errs[i]))...)
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			continue
		}
		peer := *peers[i]
		peer.Preferences = nil
		direction := "outgoing"
		if m.CreatorID2 == me.ID {
			direction = "incoming"
		}
		out = append(out, matchView{Match: m, Direction: direction, Peer: &peer})
	}
	writeJSON(w, http.StatusOK, map[string][]matchView{"matches": out})
}

// requestMatch creates a pending request from the caller to creatorId.
// If creatorId already asked the caller, the request is accepted instead.
func (s *server) requestMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CreatorID string `json:"creatorId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.CreatorID = strings.TrimSpace(req.CreatorID)
	if req.CreatorID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	me, ok := s.currentCreator(w, r)
	if !ok {
		return
	}
	if req.CreatorID == me.ID {
		writeError(w, http.StatusBadRequest, "invalid_target")
		return
	}
	target, err := s.store.creatorByID(r.Context(), req.CreatorID)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		s.log.Error("load target", append(requestFields(r), zap.Error(err))...)
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var (
		result  *Match
		created bool
	)
	err = withTx(r.Context(), s.store.db, func(tx *sql.Tx) error {
		row, err := s.store.loadPairForUpdate(r.Context(), tx, me.ID, target.ID)
		if err != nil {
			return err
		}

		if row == nil {
			result = &Match{
				CreatorID1:       me.ID,
				CreatorID2:       target.ID,
				Status:           MatchPending,
				SuggestedCollabs: s.catalog.suggestionTitles(me.Profile(), target.Profile()),
			}
			created = true
			return s.store.insertMatch(r.Context(), tx, result)
		}

		result = row
		switch row.Status {
		case MatchPending:
			// Mutual request: they asked first.
			if row.CreatorID1 == target.ID {
				return s.store.setMatchStatus(r.Context(), tx, row, MatchAccepted)
			}
			return nil
		case MatchAccepted:
			return nil
		default:
			return &stateError{http.StatusConflict, "invalid_state"}
		}
	})
	if err != nil {
		s.writeTxError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.log.Info("match requested", zap.String("match_id", result.ID), zap.String("from", me.ID), zap.String("to", target.ID))
	}
	writeJSON(w, status, result)
}

// A dispatcher for all /matches/{id}/... requests
func (s *server) matchActionsRouter() http.HandlerFunc {
	return s.authenticate(func(w http.ResponseWriter, r *http.Request) {
		parts := pathParts(r)
		if len(parts) != 3 || parts[0] != "matches" {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		matchID := parts[1]

		switch parts[2] {
		case "accept":
			s.transitionMatch(w, r, matchID, MatchAccepted)
		case "reject":
			s.transitionMatch(w, r, matchID, MatchRejected)
		case "messages":
			switch r.Method {
			case http.MethodGet:
				s.listMessages(w, r, matchID)
			case http.MethodPost:
				s.sendMessage(w, r, matchID)
			default:
				methodNotAllowed(w)
			}
		default:
			writeError(w, http.StatusNotFound, "not_found")
		}
	})
}

// POST /matches/{id}/accept and /matches/{id}/reject
// Only the addressee decides. Matches the caller is not the addressee of are
// reported as missing.
func (s *server) transitionMatch(w http.ResponseWriter, r *http.Request, matchID string, to MatchStatus) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	me, ok := s.currentCreator(w, r)
	if !ok {
		return
	}

	var result *Match
	err := withTx(r.Context(), s.store.db, func(tx *sql.Tx) error {
		m, err := s.store.matchForUpdate(r.Context(), tx, matchID)
		if errors.Is(err, errNotFound) {
			return &stateError{http.StatusNotFound, "not_found"}
		}
		if err != nil {
			return err
		}
		if m.CreatorID2 != me.ID {
			return &stateError{http.StatusNotFound, "not_found"}
		}

		result = m
		switch m.Status {
		case to:
			return nil
		case MatchPending:
			return s.store.setMatchStatus(r.Context(), tx, m, to)
		default:
			return &stateError{http.StatusConflict, "invalid_state"}
		}
	})
	if err != nil {
		s.writeTxError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// participantMatch loads a match the caller takes part in. Anything else is 404.
func (s *server) participantMatch(w http.ResponseWriter, r *http.Request, me *Creator, matchID string) (*Match, bool) {
	m, err := s.store.matchByID(r.Context(), matchID)
	if errors.Is(err, errNotFound) || (err == nil && !m.HasParticipant(me.ID)) {
		writeError(w, http.StatusNotFound, "not_found")
		return nil, false
	}
	if err != nil {
		s.log.Error("load match", append(requestFields(r), zap.String("match_id", matchID), zap.Error(err))...)
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, false
	}
	return m, true
}
