package classify

import (
	"strings"

	"github.com/coxlabs/coxswain/pkg/models"
)

// Structural metric weights (spec-fixed).
const (
	itemWeight       = 2.0
	fileWeight       = 1.5
	dependencyWeight = 3.0
	criteriaWeight   = 0.5
)

// Level thresholds. All structural bounds must hold simultaneously for a
// tier, together with the score ceiling; keyword weight alone can push a
// small backlog past a ceiling and into a higher tier.
const (
	simpleMaxItems        = 2
	simpleMaxFiles        = 3
	simpleMaxDependencies = 1
	simpleMaxScore        = 15.0

	standardMaxItems        = 6
	standardMaxFiles        = 10
	standardMaxDependencies = 5
	standardMaxScore        = 40.0
)

// Classifier scores backlogs against a keyword indicator table.
type Classifier struct {
	weights map[string]float64
}

// New creates a classifier with the default indicator table.
func New() *Classifier {
	return &Classifier{weights: KeywordWeights()}
}

// NewWithWeights creates a classifier with a custom indicator table,
// typically loaded from a keywords.yaml override.
func NewWithWeights(weights map[string]float64) *Classifier {
	if weights == nil {
		weights = KeywordWeights()
	}
	return &Classifier{weights: weights}
}

// Classify scores the backlog and selects a level and pipeline policy.
// It is pure: no side effects, and repeated calls on the same backlog
// return identical results.
func (c *Classifier) Classify(b *models.Backlog) models.ClassificationResult {
	metrics := measure(b)
	indicators := c.detectIndicators(b)

	score := float64(metrics.ItemCount)*itemWeight +
		float64(metrics.FileCount)*fileWeight +
		float64(metrics.DependencyCount)*dependencyWeight +
		float64(metrics.CriteriaCount)*criteriaWeight
	for _, w := range indicators {
		score += w
	}

	level := selectLevel(metrics, score)

	return models.ClassificationResult{
		Level:          level,
		Score:          score,
		Metrics:        metrics,
		Indicators:     indicators,
		Recommendation: PolicyFor(level),
	}
}

// selectLevel picks the tier in strictness order. A backlog qualifies
// for a tier only if every structural bound and the score ceiling hold.
func selectLevel(m models.Metrics, score float64) models.Level {
	if m.ItemCount <= simpleMaxItems &&
		m.FileCount <= simpleMaxFiles &&
		m.DependencyCount <= simpleMaxDependencies &&
		score < simpleMaxScore {
		return models.LevelSimple
	}
	if m.ItemCount <= standardMaxItems &&
		m.FileCount <= standardMaxFiles &&
		m.DependencyCount <= standardMaxDependencies &&
		score < standardMaxScore {
		return models.LevelStandard
	}
	return models.LevelComplex
}

// measure computes the structural metrics for a backlog.
func measure(b *models.Backlog) models.Metrics {
	m := models.Metrics{ItemCount: len(b.Items)}

	files := map[string]struct{}{}
	for _, item := range b.Items {
		m.CriteriaCount += len(item.AcceptanceCriteria)
		for _, f := range referencedFiles(itemText(item)) {
			files[f] = struct{}{}
		}
	}
	m.FileCount = len(files)
	m.DependencyCount = countDependencies(b)
	return m
}

// itemText joins the searchable text of one item.
func itemText(item models.WorkItem) string {
	parts := make([]string, 0, 2+len(item.AcceptanceCriteria))
	parts = append(parts, item.Title, item.Description)
	parts = append(parts, item.AcceptanceCriteria...)
	return strings.Join(parts, "\n")
}

// backlogText joins the searchable text of the whole backlog. The
// classification result itself is deliberately excluded so that
// reclassifying an already-classified backlog sees the same input.
func backlogText(b *models.Backlog) string {
	parts := make([]string, 0, 2+len(b.Items))
	parts = append(parts, b.ProjectName, b.BranchName)
	for _, item := range b.Items {
		parts = append(parts, itemText(item))
	}
	return strings.ToLower(strings.Join(parts, "\n"))
}

// detectIndicators scans the serialized backlog for indicator keywords.
// Each detected keyword contributes its weight exactly once.
func (c *Classifier) detectIndicators(b *models.Backlog) map[string]float64 {
	text := backlogText(b)
	found := map[string]float64{}
	for _, kw := range Keywords(c.weights) {
		if strings.Contains(text, kw) {
			found[kw] = c.weights[kw]
		}
	}
	return found
}

// pathExtensions are file extensions that make a bare token count as a
// file reference even without a path separator.
var pathExtensions = map[string]struct{}{
	"go": {}, "js": {}, "jsx": {}, "ts": {}, "tsx": {}, "py": {}, "rb": {},
	"rs": {}, "java": {}, "sql": {}, "md": {}, "json": {}, "yaml": {},
	"yml": {}, "toml": {}, "html": {}, "css": {}, "sh": {}, "proto": {},
}

// referencedFiles extracts tokens that look like file paths from free
// text: anything containing a path separator, or a bare name with a
// known source extension.
func referencedFiles(text string) []string {
	var out []string
	for _, word := range strings.Fields(text) {
		// Trailing punctuation only; leading dots matter for dotfiles.
		cleaned := strings.TrimRight(word, ",;:\"'`()[]{}!?.")
		if cleaned == "" {
			continue
		}
		if strings.Contains(cleaned, "/") {
			out = append(out, cleaned)
			continue
		}
		if dot := strings.LastIndex(cleaned, "."); dot > 0 && dot < len(cleaned)-1 {
			ext := strings.ToLower(cleaned[dot+1:])
			if _, ok := pathExtensions[ext]; ok {
				out = append(out, cleaned)
			}
		}
	}
	return out
}

// countDependencies counts cross-item references: every mention of one
// item's id inside another item's text is a dependency edge.
func countDependencies(b *models.Backlog) int {
	count := 0
	for i, item := range b.Items {
		text := strings.ToLower(itemText(item))
		for j, other := range b.Items {
			if i == j || other.ID == "" {
				continue
			}
			if strings.Contains(text, strings.ToLower(other.ID)) {
				count++
			}
		}
	}
	return count
}
