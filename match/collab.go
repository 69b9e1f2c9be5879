package match

// CollabSuggestion is a collaboration idea from the suggestion catalog.
type CollabSuggestion struct {
	ID            string     `json:"id" yaml:"id"`
	Title         string     `json:"title" yaml:"title"`
	Description   string     `json:"description" yaml:"description"`
	ContentNiches []Niche    `json:"contentNiches" yaml:"contentNiches"`
	Platforms     []Platform `json:"platforms" yaml:"platforms"`
	Difficulty    SkillLevel `json:"difficulty" yaml:"difficulty"`
}

// SuggestCollabs picks catalog entries both creators can take on: at least one
// niche shared by both, at least one platform both publish on, and a
// difficulty no harder than the more experienced creator. Catalog order is kept.
func SuggestCollabs(a, b Profile, catalog []CollabSuggestion) []CollabSuggestion {
	niches := intersect(a.ContentNiches, b.ContentNiches)
	platforms := intersect(a.Platforms, b.Platforms)
	if len(niches) == 0 || len(platforms) == 0 {
		return nil
	}

	ceiling := -1
	if i, ok := a.SkillLevel.Ordinal(); ok {
		ceiling = i
	}
	if i, ok := b.SkillLevel.Ordinal(); ok && i > ceiling {
		ceiling = i
	}

	var out []CollabSuggestion
	for _, s := range catalog {
		d, ok := s.Difficulty.Ordinal()
		if !ok || d > ceiling {
			continue
		}
		if !anyIn(s.ContentNiches, niches) || !anyIn(s.Platforms, platforms) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func intersect[T comparable](a, b []T) map[T]struct{} {
	inB := make(map[T]struct{}, len(b))
	for _, v := range b {
		inB[v] = struct{}{}
	}
	out := make(map[T]struct{})
	for _, v := range a {
		if _, ok := inB[v]; ok {
			out[v] = struct{}{}
		}
	}
	return out
}

func anyIn[T comparable](values []T, set map[T]struct{}) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
