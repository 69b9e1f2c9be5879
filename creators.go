package main

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/creatormatch/backend/match"
)

// creatorInput is the editable part of a creator as sent by the signup and
// profile forms. Missing sets are stored as empty.
type creatorInput struct {
	Name          string           `json:"name"`
	Age           int              `json:"age"`
	Gender        string           `json:"gender"`
	Location      string           `json:"location"`
	ContentNiches []match.Niche    `json:"contentNiches"`
	SkillLevel    match.SkillLevel `json:"skillLevel"`
	Platforms     []match.Platform `json:"platforms"`
	Goals         []match.Goal     `json:"goals"`
	Timezone      *match.Offset    `json:"timezone"`
	Languages     []string         `json:"languages"`
	Vibes         []match.Vibe     `json:"vibes"`
	Bio           string           `json:"bio"`
	AvatarURL     string           `json:"avatarUrl"`
}

// apply validates in and copies it onto c. c is left untouched on error.
func (in *creatorInput) apply(c *Creator) error {
	if in.Timezone == nil {
		return &match.ValidationError{Field: "timezone", Err: match.ErrInvalidTimezone}
	}
	if in.Age < 0 {
		return &match.ValidationError{Field: "age", Err: errors.New("must not be negative")}
	}

	languages := make([]string, 0, len(in.Languages))
	for _, l := range in.Languages {
		languages = append(languages, strings.TrimSpace(l))
	}

	next := *c
	next.Name = strings.TrimSpace(in.Name)
	next.Age = in.Age
	next.Gender = strings.TrimSpace(in.Gender)
	next.Location = strings.TrimSpace(in.Location)
	next.ContentNiches = orEmpty(in.ContentNiches)
	next.SkillLevel = in.SkillLevel
	next.Platforms = orEmpty(in.Platforms)
	next.Goals = orEmpty(in.Goals)
	next.Timezone = *in.Timezone
	next.Languages = languages
	next.Vibes = orEmpty(in.Vibes)
	next.Bio = strings.TrimSpace(in.Bio)
	next.AvatarURL = strings.TrimSpace(in.AvatarURL)

	if err := next.Profile().Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func orEmpty[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

// GET /me returns the caller's profile. PATCH /me replaces its editable attributes.
func (s *server) meHandler() http.HandlerFunc {
	return s.authenticate(func(w http.ResponseWriter, r *http.Request) {
		me, ok := s.currentCreator(w, r)
		if !ok {
			return
		}

		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, me)

		case http.MethodPatch:
			var in creatorInput
			if err := decodeJSON(r, &in); err != nil {
				writeDecodeError(w, err)
				return
			}
			if err := in.apply(me); err != nil {
				writeValidationError(w, err)
				return
			}
			if err := s.store.updateCreatorProfile(r.Context(), me); err != nil {
				s.log.Error("update profile", append(requestFields(r), zap.String("creator_id", me.ID), zap.Error(err))...)
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			writeJSON(w, http.StatusOK, me)

		default:
			methodNotAllowed(w)
		}
	})
}

// GET /creators/{id}
func (s *server) creatorHandler() http.HandlerFunc {
	return s.authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		parts := pathParts(r)
		if len(parts) != 2 || parts[0] != "creators" {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		c, err := s.store.creatorByID(r.Context(), parts[1])
		if errors.Is(err, errNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		if err != nil {
			s.log.Error("load creator", append(requestFields(r), zap.Error(err))...)
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		// answers stay private to their owner
		c.Preferences = nil
		writeJSON(w, http.StatusOK, c)
	})
}
