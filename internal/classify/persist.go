package classify

import (
	"fmt"
	"reflect"

	"github.com/coxlabs/coxswain/internal/store"
	"github.com/coxlabs/coxswain/pkg/models"
)

// ClassifyAndPersist classifies the backlog held in prd.json and writes
// the result back onto it. It is idempotent: reclassifying an unchanged
// backlog computes an identical result and leaves the document as it is.
//
// If force is false and the backlog is already classified, the stored
// result is returned without recomputation.
func (c *Classifier) ClassifyAndPersist(st *store.Store, force bool) (models.ClassificationResult, error) {
	backlog, meta, err := st.LoadBacklog()
	if err != nil {
		return models.ClassificationResult{}, fmt.Errorf("load backlog: %w", err)
	}

	if backlog.Classified() && !force {
		return *backlog.ComplexityDetails, nil
	}

	result := c.Classify(backlog)

	// Unchanged backlog, unchanged result: skip the write entirely so
	// the document stays byte-identical.
	if backlog.Classified() && reflect.DeepEqual(*backlog.ComplexityDetails, result) {
		return result, nil
	}

	backlog.Complexity = result.Level
	backlog.ComplexityDetails = &result
	if _, err := st.SaveBacklog(backlog, meta); err != nil {
		return models.ClassificationResult{}, fmt.Errorf("persist classification: %w", err)
	}
	return result, nil
}
