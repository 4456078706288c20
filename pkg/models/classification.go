package models

// Level is the complexity tier assigned to a backlog.
type Level string

const (
	// LevelSimple covers tiny backlogs with no risky indicators.
	LevelSimple Level = "SIMPLE"
	// LevelStandard covers typical backlogs.
	LevelStandard Level = "STANDARD"
	// LevelComplex covers large or keyword-heavy backlogs.
	LevelComplex Level = "COMPLEX"
)

// Valid returns true if the level is a known value.
func (l Level) Valid() bool {
	switch l {
	case LevelSimple, LevelStandard, LevelComplex:
		return true
	default:
		return false
	}
}

// QADepth controls how thorough the validation loop is for a run.
type QADepth string

const (
	// QADepthLight runs only the test gate.
	QADepthLight QADepth = "light"
	// QADepthStandard runs typecheck, lint and tests.
	QADepthStandard QADepth = "standard"
	// QADepthExtensive runs all gates and the self-critique pass.
	QADepthExtensive QADepth = "extensive"
)

// Metrics are the structural measurements the classifier scores.
type Metrics struct {
	// ItemCount is the number of work items in the backlog.
	ItemCount int `json:"itemCount"`
	// FileCount is the number of distinct files referenced by item text.
	FileCount int `json:"fileCount"`
	// DependencyCount is the number of cross-item references detected.
	DependencyCount int `json:"dependencyCount"`
	// CriteriaCount is the total number of acceptance criteria.
	CriteriaCount int `json:"criteriaCount"`
}

// PipelinePolicy is the set of behavioral toggles selected by the
// classifier. It is a pure function of the level.
type PipelinePolicy struct {
	// UsePlanner enables an up-front planning pass.
	UsePlanner bool `json:"usePlanner"`
	// QADepth selects how many gates the validation loop requires.
	QADepth QADepth `json:"qaDepth"`
	// ParallelAgents hints that downstream callers may parallelize.
	// The control plane itself always runs one item at a time.
	ParallelAgents bool `json:"parallelAgents"`
	// ResearchPhase enables a research pass before implementation.
	ResearchPhase bool `json:"researchPhase"`
	// SelfCritique enables a critique-and-improve pass per item.
	SelfCritique bool `json:"selfCritique"`
}

// ClassificationResult is the full output of classifying a backlog.
// Recomputing with an unchanged backlog yields an identical result.
type ClassificationResult struct {
	// Level is the selected complexity tier.
	Level Level `json:"level"`
	// Score is the weighted structural score plus indicator weights.
	Score float64 `json:"score"`
	// Metrics are the structural measurements that fed the score.
	Metrics Metrics `json:"metrics"`
	// Indicators maps each detected keyword to its weight.
	Indicators map[string]float64 `json:"indicators"`
	// Recommendation is the pipeline policy for the selected level.
	Recommendation PipelinePolicy `json:"recommendation"`
}
