package records

import (
	"fmt"
	"sort"
	"strings"
)

// ParentType is the discriminator stored in observation.parent_type.
type ParentType string

const (
	ParentCensus        ParentType = "CENSUS"
	ParentSurvey        ParentType = "SURVEY"
	ParentProximate     ParentType = "PROXIMATE"
	ParentUltimate      ParentType = "ULTIMATE"
	ParentCompositional ParentType = "COMPOSITIONAL"
)

// Family groups variants that share one canonical view.
type Family string

const (
	FamilyCensus      Family = "CENSUS"
	FamilySurvey      Family = "SURVEY"
	FamilyLabAnalysis Family = "LAB_ANALYSIS"
)

// KeyKind says how a variant is identified and what an observation stores
// in parent_reference for it.
type KeyKind int

const (
	// KeyNatural variants are keyed by (geography_id, period, commodity_code)
	// and referenced by their generated id rendered as text.
	KeyNatural KeyKind = iota + 1
	// KeyRecord variants are keyed and referenced by record_key.
	KeyRecord
)

func (k KeyKind) String() string {
	switch k {
	case KeyNatural:
		return "natural"
	case KeyRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Variant describes one parent record table.
type Variant struct {
	Type          ParentType
	Family        Family
	Table         string
	Key           KeyKind
	DefaultSource string
}

var variants = map[ParentType]Variant{
	ParentCensus:        {Type: ParentCensus, Family: FamilyCensus, Table: "census_record", Key: KeyNatural, DefaultSource: "USDA"},
	ParentSurvey:        {Type: ParentSurvey, Family: FamilySurvey, Table: "survey_record", Key: KeyNatural, DefaultSource: "USDA"},
	ParentProximate:     {Type: ParentProximate, Family: FamilyLabAnalysis, Table: "proximate_record", Key: KeyRecord, DefaultSource: "LAB"},
	ParentUltimate:      {Type: ParentUltimate, Family: FamilyLabAnalysis, Table: "ultimate_record", Key: KeyRecord, DefaultSource: "LAB"},
	ParentCompositional: {Type: ParentCompositional, Family: FamilyLabAnalysis, Table: "compositional_record", Key: KeyRecord, DefaultSource: "LAB"},
}

// ParseParentType normalizes s and checks it against the registry.
func ParseParentType(s string) (ParentType, error) {
	t := ParentType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := variants[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownParentType, s)
	}
	return t, nil
}

// Lookup returns the registered variant for t.
func Lookup(t ParentType) (Variant, bool) {
	v, ok := variants[t]
	return v, ok
}

// MustLookup panics for unregistered types; reserved for registry-internal
// constants.
func MustLookup(t ParentType) Variant {
	v, ok := variants[t]
	if !ok {
		panic(fmt.Sprintf("records: unregistered parent type %q", t))
	}
	return v
}

// Variants lists every registered variant in a stable order.
func Variants() []Variant {
	out := make([]Variant, 0, len(variants))
	for _, v := range variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// FamilyVariants lists the variants belonging to f in a stable order.
func FamilyVariants(f Family) []Variant {
	var out []Variant
	for _, v := range Variants() {
		if v.Family == f {
			out = append(out, v)
		}
	}
	return out
}

func (t ParentType) Valid() bool {
	_, ok := variants[t]
	return ok
}

func (t ParentType) String() string { return string(t) }
