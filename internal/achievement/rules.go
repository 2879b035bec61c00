package achievement

// ProgressFacts are the inputs to threshold rule evaluation.
type ProgressFacts struct {
	Score float64
	Level int
}

type scoreRule struct {
	id  string
	min float64
}

type levelRule struct {
	id  string
	min int
}

var scoreRules = []scoreRule{
	{"score_1000", 1_000},
	{"score_10000", 10_000},
	{"score_100000", 100_000},
}

var levelRules = []levelRule{
	{"level_10", 10},
	{"level_50", 50},
	{"level_100", 100},
}

// EvaluateRules returns every achievement id whose threshold the facts
// meet. Out-of-range input never fails; it simply matches nothing.
func EvaluateRules(facts ProgressFacts) []string {
	var ids []string
	if facts.Level >= 1 && facts.Score > 0 {
		ids = append(ids, "first_win")
	}
	for _, r := range scoreRules {
		if facts.Score >= r.min {
			ids = append(ids, r.id)
		}
	}
	for _, r := range levelRules {
		if facts.Level >= r.min {
			ids = append(ids, r.id)
		}
	}
	return ids
}
