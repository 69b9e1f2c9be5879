package main

import (
	"time"

	"github.com/creatormatch/backend/match"
)

// Creator is a row of the backend's creators table.
type Creator struct {
	ID                  string           `json:"id"`
	AuthID              string           `json:"-"`
	Name                string           `json:"name"`
	Age                 int              `json:"age"`
	Gender              string           `json:"gender"`
	Location            string           `json:"location,omitempty"`
	ContentNiches       []match.Niche    `json:"contentNiches"`
	SkillLevel          match.SkillLevel `json:"skillLevel"`
	Platforms           []match.Platform `json:"platforms"`
	Goals               []match.Goal     `json:"goals"`
	Timezone            match.Offset     `json:"timezone"`
	Languages           []string         `json:"languages"`
	Vibes               []match.Vibe     `json:"vibes"`
	Bio                 string           `json:"bio"`
	AvatarURL           string           `json:"avatarUrl,omitempty"`
	OnboardingCompleted bool             `json:"onboardingCompleted"`
	Preferences         *Preferences     `json:"preferences,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// Profile returns the scoring snapshot of c.
func (c *Creator) Profile() match.Profile {
	return match.Profile{
		ID:            c.ID,
		ContentNiches: c.ContentNiches,
		Platforms:     c.Platforms,
		Goals:         c.Goals,
		Vibes:         c.Vibes,
		Languages:     c.Languages,
		Timezone:      c.Timezone,
		SkillLevel:    c.SkillLevel,
	}
}

// Preferences holds the onboarding questionnaire answers. Unanswered questions stay nil.
type Preferences struct {
	BiggestChallenge       *string `json:"biggest_challenge"`
	CollaborationStyle     *string `json:"collaboration_style"`
	CollaborationFrequency *string `json:"collaboration_frequency"`
	DesiredResources       *string `json:"desired_resources"`
}

type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchAccepted MatchStatus = "accepted"
	MatchRejected MatchStatus = "rejected"
)

// Match links a requesting creator (CreatorID1) with the addressee (CreatorID2).
type Match struct {
	ID               string      `json:"id"`
	CreatorID1       string      `json:"creatorId1"`
	CreatorID2       string      `json:"creatorId2"`
	Status           MatchStatus `json:"status"`
	SuggestedCollabs []string    `json:"suggestedCollabs"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Peer returns the id of the participant that is not creatorID.
func (m *Match) Peer(creatorID string) string {
	if m.CreatorID1 == creatorID {
		return m.CreatorID2
	}
	return m.CreatorID1
}

func (m *Match) HasParticipant(creatorID string) bool {
	return m.CreatorID1 == creatorID || m.CreatorID2 == creatorID
}

// Message is a chat message inside a match.
type Message struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"matchId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
