package mode

// Mode is the query variant derived from which inputs are present.
type Mode string

// Search mode constants.
const (
	// Vector ranks the whole corpus by visual similarity.
	Vector Mode = "vector"
	// Text ranks tag matches by backend text relevance.
	Text Mode = "text"
	// Hybrid ranks tag matches by visual similarity; text acts as a pre-filter.
	Hybrid Mode = "hybrid"
)

// Of returns the mode for the given inputs. ok is false when neither is present.
func Of(hasVector, hasText bool) (m Mode, ok bool) {
	switch {
	case hasVector && hasText:
		return Hybrid, true
	case hasVector:
		return Vector, true
	case hasText:
		return Text, true
	default:
		return "", false
	}
}

// UsesVector reports whether the mode scores by embedding similarity.
func (m Mode) UsesVector() bool { return m == Vector || m == Hybrid }
