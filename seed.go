package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/creatormatch/backend/match"
)

type seedOptions struct {
	Count       int
	Seed        int64
	Truncate    bool
	AcceptRate  float64 // proportion of pairs with an accepted match
	PendingRate float64 // proportion of pairs with a pending request
}

func (o seedOptions) validate() error {
	if o.Count < 2 {
		return errors.New("--count must be at least 2")
	}
	if o.AcceptRate < 0 || o.AcceptRate > 1 || o.PendingRate < 0 || o.PendingRate > 1 || o.AcceptRate+o.PendingRate > 1 {
		return errors.New("rate flags must be in range 0..1 and sum to at most 1")
	}
	return nil
}

type seedResult struct {
	Creators []*Creator
	Accepted int
	Pending  int
}

// Fixed accounts for local logins. Their auth ids are what the dev tokens carry.
var seedTestUsers = []struct {
	authID string
	name   string
}{
	{"seed-user-1", "Test Creator One"},
	{"seed-user-2", "Test Creator Two"},
}

// seedDatabase fills st with deterministic demo data. The first two creators
// are the fixed test accounts, onboarded and matched with each other.
func seedDatabase(ctx context.Context, st *store, cat *catalog, o seedOptions) (*seedResult, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	r := rand.New(rand.NewSource(o.Seed))

	if o.Truncate {
		if err := st.truncate(ctx); err != nil {
			return nil, fmt.Errorf("truncate: %w", err)
		}
	}

	res := &seedResult{}
	for i := 0; i < o.Count; i++ {
		c := randomCreator(r, i)
		if err := st.insertCreator(ctx, c); err != nil {
			return nil, fmt.Errorf("insert creator %d: %w", i, err)
		}
		if err := st.completeOnboarding(ctx, c.ID, randomPreferences(r, cat)); err != nil {
			return nil, fmt.Errorf("onboard creator %d: %w", i, err)
		}
		c.OnboardingCompleted = true
		res.Creators = append(res.Creators, c)
	}

	first, second := res.Creators[0], res.Creators[1]
	m, err := seedMatch(ctx, st, cat, first, second, MatchAccepted)
	if err != nil {
		return nil, err
	}
	res.Accepted++
	hello := &Message{MatchID: m.ID, SenderID: first.ID, Content: "Hey! Want to plan a collab?"}
	if err := st.insertMessage(ctx, hello); err != nil {
		return nil, fmt.Errorf("first message: %w", err)
	}

	// Random graph among the rest
	rest := res.Creators[2:]
	for i := 0; i < len(rest); i++ {
		for j := i + 1; j < len(rest); j++ {
			p := r.Float64()
			switch {
			case p < o.AcceptRate:
				if _, err := seedMatch(ctx, st, cat, rest[i], rest[j], MatchAccepted); err != nil {
					return nil, err
				}
				res.Accepted++
			case p < o.AcceptRate+o.PendingRate:
				if _, err := seedMatch(ctx, st, cat, rest[i], rest[j], MatchPending); err != nil {
					return nil, err
				}
				res.Pending++
			}
		}
	}
	return res, nil
}

func seedMatch(ctx context.Context, st *store, cat *catalog, a, b *Creator, status MatchStatus) (*Match, error) {
	m := &Match{
		CreatorID1:       a.ID,
		CreatorID2:       b.ID,
		Status:           status,
		SuggestedCollabs: cat.suggestionTitles(a.Profile(), b.Profile()),
	}
	if err := st.insertMatch(ctx, st.db, m); err != nil {
		return nil, fmt.Errorf("match %s with %s: %w", a.ID, b.ID, err)
	}
	return m, nil
}

func randomCreator(r *rand.Rand, i int) *Creator {
	c := &Creator{
		Age:           18 + r.Intn(30),
		Gender:        pick(r, []string{"female", "male", "non-binary", "prefer not to say"}),
		Location:      pick(r, []string{"Helsinki", "Berlin", "Lisbon", "Austin", "Toronto", "Seoul", "Lagos"}),
		ContentNiches: pickSome(r, match.Niches(), 1, 3),
		SkillLevel:    pick(r, match.SkillLevels()),
		Platforms:     pickSome(r, match.Platforms(), 1, 3),
		Goals:         pickSome(r, match.Goals(), 1, 2),
		Timezone:      match.Offset(r.Intn(int(match.MaxOffset-match.MinOffset)+1)) + match.MinOffset,
		Languages:     pickSome(r, []string{"English", "Spanish", "German", "Finnish", "Korean", "Portuguese"}, 1, 2),
		Vibes:         pickSome(r, match.Vibes(), 1, 3),
	}
	if i < len(seedTestUsers) {
		c.AuthID = seedTestUsers[i].authID
		c.Name = seedTestUsers[i].name
	} else {
		c.AuthID = fmt.Sprintf("seed-user-%d", i+1)
		c.Name = randomName(r)
	}
	c.Bio = fmt.Sprintf("%s creator making %s content.", c.SkillLevel, strings.ToLower(string(c.ContentNiches[0])))
	return c
}

func randomPreferences(r *rand.Rand, cat *catalog) Preferences {
	var p Preferences
	for _, q := range cat.questions {
		preferenceSetters[q.Key](&p, pick(r, q.Options))
	}
	return p
}

func randomName(r *rand.Rand) string {
	first := pick(r, []string{"Alex", "Sam", "Mia", "Li", "Noah", "Olivia", "Leo", "Emil", "Sara", "Luca", "Milla", "Eeva", "Niklas", "Sofia"})
	last := pick(r, []string{"Korhonen", "Virtanen", "Laine", "Koski", "Park", "Silva", "Okafor", "Weber", "Tremblay"})
	return first + " " + last
}

func pick[T any](r *rand.Rand, from []T) T {
	return from[r.Intn(len(from))]
}

// pickSome returns between lo and hi distinct elements of from, in vocabulary order.
func pickSome[T any](r *rand.Rand, from []T, lo, hi int) []T {
	n := lo + r.Intn(hi-lo+1)
	idx := r.Perm(len(from))[:n]
	out := make([]T, 0, n)
	for i := range from {
		for _, j := range idx {
			if i == j {
				out = append(out, from[i])
				break
			}
		}
	}
	return out
}
