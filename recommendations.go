package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/creatormatch/backend/match"
)

type recommendation struct {
	Creator   *Creator        `json:"creator"`
	Score     int             `json:"score"`
	Breakdown match.Breakdown `json:"breakdown"`
}

// GET /recommendations?limit=n
// Ranks every creator the caller has no match with yet, best first.
func (s *server) recommendationsHandler() http.HandlerFunc {
	return s.authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		limit, ok := intParam(r, "limit", s.recLimit, maxRecommendations)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}

		me, ok := s.currentCreator(w, r)
		if !ok {
			return
		}
		// Gate by onboarding
		if !me.OnboardingCompleted {
			writeError(w, http.StatusForbidden, "onboarding_incomplete")
			return
		}

		candidates, err := s.store.candidateCreators(r.Context(), me.ID)
		if err != nil {
			s.log.Error("load candidates", append(requestFields(r), zap.String("creator_id", me.ID), zap.Error(err))...)
			writeError(w, http.StatusInternalServerError, "recommendation_error")
			return
		}

		byID := make(map[string]*Creator, len(candidates))
		profiles := make([]match.Profile, 0, len(candidates))
		for _, c := range candidates {
			byID[c.ID] = c
			profiles = append(profiles, c.Profile())
		}

		ranked := s.scorer.Rank(me.Profile(), profiles)
		if len(ranked) > limit {
			ranked = ranked[:limit]
		}

		out := make([]recommendation, 0, len(ranked))
		for _, rk := range ranked {
			c := byID[rk.Profile.ID]
			c.Preferences = nil
			out = append(out, recommendation{Creator: c, Score: rk.Score, Breakdown: rk.Breakdown})
		}
		writeJSON(w, http.StatusOK, map[string][]recommendation{"recommendations": out})
	})
}
