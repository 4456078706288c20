package store

import (
	"github.com/coxlabs/coxswain/pkg/models"
)

// Document names within a run directory.
const (
	// DocBacklog holds the serialized backlog, including classification
	// once attached.
	DocBacklog = "prd.json"
	// DocControlState holds the execution control state machine.
	DocControlState = "intervention.json"
	// DocQAHistory holds the append-only QA history.
	DocQAHistory = "qa-history.json"
)

// Current schema versions per document.
const (
	SchemaBacklog      = 1
	SchemaControlState = 1
	SchemaQAHistory    = 1
	SchemaCheckpoint   = 1
)

// LoadBacklog reads prd.json. Returns ErrNotFound if the document is
// absent or unparseable.
func (s *Store) LoadBacklog() (*models.Backlog, Meta, error) {
	var b models.Backlog
	meta, err := s.Load(DocBacklog, SchemaBacklog, &b)
	if err != nil {
		return nil, Meta{}, err
	}
	return &b, meta, nil
}

// SaveBacklog writes prd.json, guarding against concurrent writers via
// the sequence in prev.
func (s *Store) SaveBacklog(b *models.Backlog, prev Meta) (Meta, error) {
	return s.Save(DocBacklog, SchemaBacklog, prev.Seq, b)
}
