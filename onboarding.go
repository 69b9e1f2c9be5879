package main

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// GET /onboarding/questions
func (s *server) onboardingQuestionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"questions": s.catalog.questions})
	}
}

// POST /onboarding
// Stores the questionnaire answers as preferences and marks onboarding done.
// Answers are keyed by question id; ids the questionnaire does not know are ignored.
func (s *server) onboardingHandler() http.HandlerFunc {
	return s.authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}

		var req struct {
			Answers map[string]string `json:"answers"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		me, ok := s.currentCreator(w, r)
		if !ok {
			return
		}

		var prefs Preferences
		for _, q := range s.catalog.questions {
			answer, given := req.Answers[strconv.Itoa(q.ID)]
			if !given {
				continue
			}
			answer = strings.TrimSpace(answer)
			if !slices.Contains(q.Options, answer) {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_answer", "question": q.ID})
				return
			}
			preferenceSetters[q.Key](&prefs, answer)
		}

		if err := s.store.completeOnboarding(r.Context(), me.ID, prefs); err != nil {
			s.log.Error("save preferences", append(requestFields(r), zap.String("creator_id", me.ID), zap.Error(err))...)
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"message":  "Preferences saved successfully",
			"redirect": "/match",
		})
	})
}
