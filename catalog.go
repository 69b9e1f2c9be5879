package main

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/creatormatch/backend/match"
)

var (
	//go:embed catalog/questions.yaml
	questionsYAML []byte

	//go:embed catalog/collabs.yaml
	collabsYAML []byte
)

// Question is one onboarding question. Key names the preference it fills.
type Question struct {
	ID       int      `json:"id" yaml:"id"`
	Key      string   `json:"key" yaml:"key"`
	Question string   `json:"question" yaml:"question"`
	Options  []string `json:"options" yaml:"options"`
}

type catalog struct {
	questions []Question
	collabs   []match.CollabSuggestion
}

func loadCatalog() (*catalog, error) {
	return parseCatalog(questionsYAML, collabsYAML)
}

func parseCatalog(questions, collabs []byte) (*catalog, error) {
	var c catalog
	if err := yaml.Unmarshal(questions, &c.questions); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	if err := yaml.Unmarshal(collabs, &c.collabs); err != nil {
		return nil, fmt.Errorf("parse collabs: %w", err)
	}

	seen := map[int]bool{}
	for _, q := range c.questions {
		if seen[q.ID] {
			return nil, fmt.Errorf("question %d declared twice", q.ID)
		}
		seen[q.ID] = true
		if _, ok := preferenceSetters[q.Key]; !ok {
			return nil, fmt.Errorf("question %d: unknown preference key %q", q.ID, q.Key)
		}
		if len(q.Options) == 0 {
			return nil, fmt.Errorf("question %d has no options", q.ID)
		}
	}
	for _, s := range c.collabs {
		if !s.Difficulty.Valid() {
			return nil, fmt.Errorf("collab %q: unknown difficulty %q", s.ID, s.Difficulty)
		}
		for _, n := range s.ContentNiches {
			if !n.Valid() {
				return nil, fmt.Errorf("collab %q: unknown niche %q", s.ID, n)
			}
		}
		for _, pl := range s.Platforms {
			if !pl.Valid() {
				return nil, fmt.Errorf("collab %q: unknown platform %q", s.ID, pl)
			}
		}
	}
	return &c, nil
}

var preferenceSetters = map[string]func(p *Preferences, v string){
	"biggest_challenge":       func(p *Preferences, v string) { p.BiggestChallenge = &v },
	"collaboration_style":     func(p *Preferences, v string) { p.CollaborationStyle = &v },
	"collaboration_frequency": func(p *Preferences, v string) { p.CollaborationFrequency = &v },
	"desired_resources":       func(p *Preferences, v string) { p.DesiredResources = &v },
}

// suggestionTitles returns the titles of the catalog ideas that fit both creators.
func (c *catalog) suggestionTitles(a, b match.Profile) []string {
	titles := []string{}
	for _, s := range match.SuggestCollabs(a, b, c.collabs) {
		titles = append(titles, s.Title)
	}
	return titles
}
