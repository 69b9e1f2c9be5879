// Package match scores how well two creators fit together.
//
// Scoring is a pure weighted overlap sum: every shared tag adds its category
// weight and timezone and skill proximity add a bonus that shrinks with
// distance. Scores are relative and unbounded; they only make sense when
// compared against other scores for the same viewer.
package match

import (
	"sort"
)

// Default weights per shared element or proximity step.
const (
	DefaultNicheWeight    = 10
	DefaultPlatformWeight = 5
	DefaultGoalWeight     = 15
	DefaultVibeWeight     = 8
	DefaultLanguageWeight = 20
	DefaultTimezoneStep   = 10
	DefaultTimezoneWindow = 3
	DefaultSkillStep      = 5
	DefaultSkillWindow    = 3
)

// Weights is the tunable scoring policy.
// Weights are all expected to be non-negative; a negative value can drive a
// score below zero.
type Weights struct {
	Niche    int
	Platform int
	Goal     int
	Vibe     int
	Language int

	// TimezoneStep is awarded for every hour the difference stays under
	// TimezoneWindow. Differences above the window earn nothing.
	TimezoneStep   int
	TimezoneWindow int

	// SkillStep is awarded for every level the difference stays under SkillWindow.
	SkillStep   int
	SkillWindow int
}

func DefaultWeights() Weights {
	return Weights{
		Niche:          DefaultNicheWeight,
		Platform:       DefaultPlatformWeight,
		Goal:           DefaultGoalWeight,
		Vibe:           DefaultVibeWeight,
		Language:       DefaultLanguageWeight,
		TimezoneStep:   DefaultTimezoneStep,
		TimezoneWindow: DefaultTimezoneWindow,
		SkillStep:      DefaultSkillStep,
		SkillWindow:    DefaultSkillWindow,
	}
}

// Breakdown is the contribution of each category to a score.
type Breakdown struct {
	Niches    int `json:"niches"`
	Platforms int `json:"platforms"`
	Goals     int `json:"goals"`
	Vibes     int `json:"vibes"`
	Languages int `json:"languages"`
	Timezone  int `json:"timezone"`
	Skill     int `json:"skill"`
	Total     int `json:"total"`
}

// Scorer applies a fixed Weights policy. It holds no mutable state and is
// safe for concurrent use.
type Scorer struct {
	w Weights
}

func NewScorer(w Weights) *Scorer {
	return &Scorer{w: w}
}

func (s *Scorer) Weights() Weights { return s.w }

var defaultScorer = NewScorer(DefaultWeights())

// Score returns the compatibility of a and b under DefaultWeights.
func Score(a, b Profile) int {
	return defaultScorer.Score(a, b)
}

func (s *Scorer) Score(a, b Profile) int {
	return s.Breakdown(a, b).Total
}

func (s *Scorer) Breakdown(a, b Profile) Breakdown {
	var r Breakdown
	r.Niches = overlap(a.ContentNiches, b.ContentNiches) * s.w.Niche
	r.Platforms = overlap(a.Platforms, b.Platforms) * s.w.Platform
	r.Goals = overlap(a.Goals, b.Goals) * s.w.Goal
	r.Vibes = overlap(a.Vibes, b.Vibes) * s.w.Vibe
	r.Languages = overlap(a.Languages, b.Languages) * s.w.Language

	tzDiff := abs(int(a.Timezone) - int(b.Timezone))
	if tzDiff <= s.w.TimezoneWindow {
		r.Timezone = proximity(tzDiff, s.w.TimezoneWindow, s.w.TimezoneStep)
	}

	// An unknown level earns nothing rather than a garbage term.
	ai, aok := a.SkillLevel.Ordinal()
	bi, bok := b.SkillLevel.Ordinal()
	if aok && bok {
		r.Skill = proximity(abs(ai-bi), s.w.SkillWindow, s.w.SkillStep)
	}

	r.Total = r.Niches + r.Platforms + r.Goals + r.Vibes + r.Languages + r.Timezone + r.Skill
	return r
}

// Ranked is a candidate with its score against the viewer.
type Ranked struct {
	Profile   Profile
	Score     int
	Breakdown Breakdown
}

// Rank scores every candidate against viewer, skipping the viewer's own
// profile, and orders them by descending score. Ties go to the lower id so
// the order is stable across calls.
func (s *Scorer) Rank(viewer Profile, candidates []Profile) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == viewer.ID {
			continue
		}
		b := s.Breakdown(viewer, c)
		out = append(out, Ranked{Profile: c, Score: b.Total, Breakdown: b})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Profile.ID < out[j].Profile.ID
	})
	return out
}

// overlap counts the distinct values of a that also appear in b.
func overlap[T comparable](a, b []T) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inB := make(map[T]struct{}, len(b))
	for _, v := range b {
		inB[v] = struct{}{}
	}
	seen := make(map[T]struct{}, len(a))
	n := 0
	for _, v := range a {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := inB[v]; ok {
			n++
		}
	}
	return n
}

func proximity(diff, window, step int) int {
	return max(0, (window-diff)*step)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
