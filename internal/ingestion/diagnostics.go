package ingestion

import (
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/observability"
)

// SkipReport explains why input rows did not become observations. Rows
// counted under MissingField, UnknownVariant or UnresolvedParent were
// dropped; Duplicate rows were already stored or repeated within the batch.
type SkipReport struct {
	MissingField     map[string]int `json:"missing_field"`
	UnknownVariant   int            `json:"unknown_variant"`
	UnresolvedParent int            `json:"unresolved_parent"`
	Duplicate        int            `json:"duplicate"`
}

func newSkipReport() SkipReport {
	return SkipReport{MissingField: map[string]int{}}
}

func (s *SkipReport) missing(field string) {
	if s.MissingField == nil {
		s.MissingField = map[string]int{}
	}
	s.MissingField[field]++
}

// Dropped is the number of rows rejected for missing data, an unknown
// variant or an unresolved parent.
func (s SkipReport) Dropped() int {
	n := s.UnknownVariant + s.UnresolvedParent
	for _, c := range s.MissingField {
		n += c
	}
	return n
}

func (s SkipReport) counts() observability.SkipCounts {
	return observability.SkipCounts{
		MissingField:     s.MissingField,
		UnknownVariant:   s.UnknownVariant,
		UnresolvedParent: s.UnresolvedParent,
		Duplicate:        s.Duplicate,
	}
}

// ParentLoadResult reports one parent-loader call.
type ParentLoadResult struct {
	Inserted map[types.ParentType]int64 `json:"inserted"`
	// Candidates is the number of rows per variant that survived tiers 1
	// and 2 and were sent to the store.
	Candidates map[types.ParentType]int `json:"candidates"`
	// MissingKey counts rows per identity field that could not form a
	// parent key.
	MissingKey map[string]int `json:"missing_key,omitempty"`
}

func newParentLoadResult() ParentLoadResult {
	return ParentLoadResult{
		Inserted:   map[types.ParentType]int64{},
		Candidates: map[types.ParentType]int{},
		MissingKey: map[string]int{},
	}
}

// ObservationLoadResult reports one observation-loader call.
type ObservationLoadResult struct {
	Inserted int64      `json:"inserted"`
	Skipped  SkipReport `json:"skipped"`
}

// LoadResult is the outcome of a full ingestion pass.
type LoadResult struct {
	RunID                string                     `json:"run_id"`
	Source               string                     `json:"source"`
	Rows                 int                        `json:"rows"`
	ParentsInserted      map[types.ParentType]int64 `json:"parents_inserted"`
	ParentsMissingKey    map[string]int             `json:"parents_missing_key,omitempty"`
	ObservationsInserted int64                      `json:"observations_inserted"`
	Skipped              SkipReport                 `json:"skipped"`
}
