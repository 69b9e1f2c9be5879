package match

import (
	"errors"
	"fmt"
)

// Niche is a content category tag.
type Niche string

const (
	NicheGaming        Niche = "Gaming"
	NicheTech          Niche = "Tech"
	NicheLifestyle     Niche = "Lifestyle"
	NicheEducation     Niche = "Education"
	NicheEntertainment Niche = "Entertainment"
	NicheFashion       Niche = "Fashion"
	NicheFood          Niche = "Food"
	NicheTravel        Niche = "Travel"
	NicheFitness       Niche = "Fitness"
	NicheMusic         Niche = "Music"
	NicheArt           Niche = "Art"
	NicheBusiness      Niche = "Business"
)

// Platform is a publishing platform tag.
type Platform string

const (
	PlatformYouTube   Platform = "YouTube"
	PlatformTikTok    Platform = "TikTok"
	PlatformInstagram Platform = "Instagram"
	PlatformTwitch    Platform = "Twitch"
	PlatformTwitter   Platform = "Twitter"
)

// Goal is what a creator is looking for on the platform.
type Goal string

const (
	GoalCollaboration Goal = "Collaboration"
	GoalFriendship    Goal = "Friendship"
	GoalLearning      Goal = "Learning"
	GoalBusiness      Goal = "Business"
)

// Vibe describes the tone of a creator's content.
type Vibe string

const (
	VibeFunny        Vibe = "Funny"
	VibeEducational  Vibe = "Educational"
	VibeChill        Vibe = "Chill"
	VibeEnergetic    Vibe = "Energetic"
	VibeProfessional Vibe = "Professional"
	VibeCreative     Vibe = "Creative"
)

// SkillLevel is an ordered experience level.
type SkillLevel string

const (
	Beginner     SkillLevel = "Beginner"
	Intermediate SkillLevel = "Intermediate"
	Advanced     SkillLevel = "Advanced"
	Professional SkillLevel = "Professional"
)

var (
	niches      = []Niche{NicheGaming, NicheTech, NicheLifestyle, NicheEducation, NicheEntertainment, NicheFashion, NicheFood, NicheTravel, NicheFitness, NicheMusic, NicheArt, NicheBusiness}
	platforms   = []Platform{PlatformYouTube, PlatformTikTok, PlatformInstagram, PlatformTwitch, PlatformTwitter}
	goals       = []Goal{GoalCollaboration, GoalFriendship, GoalLearning, GoalBusiness}
	vibes       = []Vibe{VibeFunny, VibeEducational, VibeChill, VibeEnergetic, VibeProfessional, VibeCreative}
	skillLevels = []SkillLevel{Beginner, Intermediate, Advanced, Professional}
)

// Niches returns the content niche vocabulary in display order.
func Niches() []Niche { return append([]Niche(nil), niches...) }

// Platforms returns the platform vocabulary in display order.
func Platforms() []Platform { return append([]Platform(nil), platforms...) }

// Goals returns the goal vocabulary in display order.
func Goals() []Goal { return append([]Goal(nil), goals...) }

// Vibes returns the vibe vocabulary in display order.
func Vibes() []Vibe { return append([]Vibe(nil), vibes...) }

// SkillLevels returns the skill levels from least to most experienced.
func SkillLevels() []SkillLevel { return append([]SkillLevel(nil), skillLevels...) }

func (n Niche) Valid() bool    { return contains(niches, n) }
func (p Platform) Valid() bool { return contains(platforms, p) }
func (g Goal) Valid() bool     { return contains(goals, g) }
func (v Vibe) Valid() bool     { return contains(vibes, v) }
func (s SkillLevel) Valid() bool {
	_, ok := s.Ordinal()
	return ok
}

// Ordinal returns the position of s in the ordered skill levels.
// ok is false for values outside the enumeration.
func (s SkillLevel) Ordinal() (int, bool) {
	for i, l := range skillLevels {
		if l == s {
			return i, true
		}
	}
	return 0, false
}

// Profile is the snapshot of a creator's matchable attributes.
// A nil slice is an empty set.
type Profile struct {
	ID            string     `json:"id"`
	ContentNiches []Niche    `json:"contentNiches"`
	Platforms     []Platform `json:"platforms"`
	Goals         []Goal     `json:"goals"`
	Vibes         []Vibe     `json:"vibes"`
	Languages     []string   `json:"languages"`
	Timezone      Offset     `json:"timezone"`
	SkillLevel    SkillLevel `json:"skillLevel"`
}

var (
	ErrUnknownTag        = errors.New("unknown tag")
	ErrUnknownSkillLevel = errors.New("unknown skill level")
	ErrInvalidTimezone   = errors.New("invalid timezone")
)

// ValidationError reports the first profile field that failed intake validation.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks every enumerated attribute against its vocabulary.
// Languages are free text and only need to be non-empty.
func (p Profile) Validate() error {
	if err := validTags("contentNiches", p.ContentNiches); err != nil {
		return err
	}
	if err := validTags("platforms", p.Platforms); err != nil {
		return err
	}
	if err := validTags("goals", p.Goals); err != nil {
		return err
	}
	if err := validTags("vibes", p.Vibes); err != nil {
		return err
	}
	for _, l := range p.Languages {
		if l == "" {
			return &ValidationError{Field: "languages", Value: l, Err: ErrUnknownTag}
		}
	}
	if !p.Timezone.Valid() {
		return &ValidationError{Field: "timezone", Value: fmt.Sprint(int(p.Timezone)), Err: ErrInvalidTimezone}
	}
	if !p.SkillLevel.Valid() {
		return &ValidationError{Field: "skillLevel", Value: string(p.SkillLevel), Err: ErrUnknownSkillLevel}
	}
	return nil
}

type tag interface {
	~string
	Valid() bool
}

func validTags[T tag](field string, values []T) error {
	for _, v := range values {
		if !v.Valid() {
			return &ValidationError{Field: field, Value: string(v), Err: ErrUnknownTag}
		}
	}
	return nil
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
