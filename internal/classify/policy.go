package classify

import "github.com/coxlabs/coxswain/pkg/models"

// PolicyFor returns the pipeline policy for a complexity level. The
// mapping is fixed: the policy is a pure function of the level.
func PolicyFor(level models.Level) models.PipelinePolicy {
	switch level {
	case models.LevelSimple:
		return models.PipelinePolicy{
			UsePlanner:     false,
			QADepth:        models.QADepthLight,
			ParallelAgents: false,
			ResearchPhase:  false,
			SelfCritique:   false,
		}
	case models.LevelComplex:
		return models.PipelinePolicy{
			UsePlanner:     true,
			QADepth:        models.QADepthExtensive,
			ParallelAgents: true,
			ResearchPhase:  true,
			SelfCritique:   true,
		}
	default:
		return models.PipelinePolicy{
			UsePlanner:     true,
			QADepth:        models.QADepthStandard,
			ParallelAgents: false,
			ResearchPhase:  false,
			SelfCritique:   true,
		}
	}
}
