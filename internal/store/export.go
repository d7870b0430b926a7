package store

import (
	"fmt"

	"github.com/pavelanni/talentproof/internal/model"
)

// ExportAll builds the full ledger export, newest records first.
func (s *Store) ExportAll() (model.ResultsExport, error) {
	records, err := s.ListEvaluations("", 0)
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("list evaluations: %w", err)
	}
	version, err := s.GetMetadata(KeyBackendVersion)
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("get backend version: %w", err)
	}
	if records == nil {
		records = []model.EvaluationRecord{}
	}
	return model.ResultsExport{
		BackendVersion: version,
		GeneratedAt:    s.now().UTC(),
		Count:          len(records),
		Results:        records,
	}, nil
}
