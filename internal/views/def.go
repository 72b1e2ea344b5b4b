package views

import (
	"errors"
	"fmt"
	"strings"

	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
)

// Kind says how a view is derived.
type Kind int

const (
	// KindSingle joins observations of one parent type to its table.
	KindSingle Kind = iota + 1
	// KindMulti unions several structurally identical parent tables.
	KindMulti
	// KindAggregate summarizes the materialization of another view.
	KindAggregate
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindMulti:
		return "multi"
	case KindAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// rank orders kinds for refresh: base-table views before views that read
// other materializations.
func (k Kind) rank() int { return int(k) }

// Def declares one canonical or aggregate view.
type Def struct {
	Name   string
	Kind   Kind
	Family types.Family
	// Source is the view an aggregate reads from.
	Source string
}

// Deps lists the views whose materialization d reads.
func (d Def) Deps() []string {
	if d.Kind == KindAggregate && d.Source != "" {
		return []string{d.Source}
	}
	return nil
}

// Default view names.
const (
	CensusView     = "census_observation_view"
	SurveyView     = "survey_observation_view"
	LabView        = "lab_analysis_observation_view"
	LabSummaryView = "lab_analysis_summary_view"
)

var (
	// ErrViewDependency is returned when a view would be refreshed before a
	// view it reads, or when that source was never materialized or is stale.
	ErrViewDependency = errors.New("view dependency violation")
	ErrUnknownView    = errors.New("unknown view")
)

func dependencyError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrViewDependency, fmt.Sprintf(format, args...))
}

// FamilyView names the canonical view of a parent type family.
func FamilyView(f types.Family) string {
	return strings.ToLower(string(f)) + "_observation_view"
}

// DefineFamily declares the canonical view for f: single-parent when the
// family has one variant, multi-parent otherwise.
func DefineFamily(f types.Family) (Def, error) {
	vs := types.FamilyVariants(f)
	switch len(vs) {
	case 0:
		return Def{}, fmt.Errorf("family %q has no registered parent types", f)
	case 1:
		return Def{Name: FamilyView(f), Kind: KindSingle, Family: f}, nil
	default:
		return Def{Name: FamilyView(f), Kind: KindMulti, Family: f}, nil
	}
}

// Aggregate declares a summary view over source.
func Aggregate(name, source string) Def {
	return Def{Name: name, Kind: KindAggregate, Source: source}
}
