package workflow

// validTransitions defines the phase order for each variant. Phases never skip and
// never move backwards.
//
//nolint:gochecknoglobals // Intentional package-level constant for state machine definition
var validTransitions = map[Variant]map[Phase][]Phase{
	FourPhase: {
		PhasePrime:      {PhaseInterview},
		PhaseInterview:  {PhaseSynthesize},
		PhaseSynthesize: {PhaseRecommend},
		PhaseRecommend:  {PhaseComplete},
		PhaseComplete:   {},
	},
	FivePhase: {
		PhasePrime:      {PhaseIntroduce},
		PhaseIntroduce:  {PhaseInterview},
		PhaseInterview:  {PhaseSynthesize},
		PhaseSynthesize: {PhaseRecommend},
		PhaseRecommend:  {PhaseComplete},
		PhaseComplete:   {},
	},
}

// IsValidTransition checks if a phase transition is valid for the variant.
func IsValidTransition(v Variant, from, to Phase) bool {
	allowed, exists := validTransitions[v][from]
	if !exists {
		return false
	}
	for _, p := range allowed {
		if p == to {
			return true
		}
	}
	return false
}

// IsValidVariant reports whether v names a known line-up.
func IsValidVariant(v Variant) bool {
	_, ok := validTransitions[v]
	return ok
}

// IsValidPhase reports whether p belongs to the variant's line-up.
func IsValidPhase(v Variant, p Phase) bool {
	_, ok := validTransitions[v][p]
	return ok
}

// NextPhase returns the single successor of from, or "" for the terminal phase.
func NextPhase(v Variant, from Phase) Phase {
	next := validTransitions[v][from]
	if len(next) == 0 {
		return ""
	}
	return next[0]
}

// Phases returns the variant's line-up in order.
func Phases(v Variant) []Phase {
	if !IsValidVariant(v) {
		return nil
	}
	phases := []Phase{PhasePrime}
	for p := PhasePrime; ; {
		p = NextPhase(v, p)
		if p == "" {
			return phases
		}
		phases = append(phases, p)
	}
}

// IsTerminal checks if a phase ends the run.
func IsTerminal(p Phase) bool {
	return p == PhaseComplete
}
