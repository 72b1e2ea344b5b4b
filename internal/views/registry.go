package views

import (
	"fmt"
	"sort"
	"strings"

	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
)

// Registry holds the known view definitions.
type Registry struct {
	defs  []Def
	byKey map[string]Def
}

func NewRegistry() *Registry {
	return &Registry{byKey: map[string]Def{}}
}

// DefaultRegistry declares one canonical view per parent type family and
// the lab-analysis summary over the lab view.
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, f := range []types.Family{types.FamilyCensus, types.FamilySurvey, types.FamilyLabAnalysis} {
		d, err := DefineFamily(f)
		if err != nil {
			return nil, err
		}
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	if err := r.Register(Aggregate(LabSummaryView, LabView)); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds d. An aggregate's source must already be registered.
func (r *Registry) Register(d Def) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("view missing Name")
	}
	if _, ok := r.byKey[d.Name]; ok {
		return fmt.Errorf("duplicate view name %q", d.Name)
	}
	for _, dep := range d.Deps() {
		if _, ok := r.byKey[dep]; !ok {
			return fmt.Errorf("view %q depends on unknown view %q", d.Name, dep)
		}
	}
	r.defs = append(r.defs, d)
	r.byKey[d.Name] = d
	return nil
}

func (r *Registry) Get(name string) (Def, bool) {
	d, ok := r.byKey[name]
	return d, ok
}

// Defs lists definitions in registration order.
func (r *Registry) Defs() []Def {
	out := make([]Def, len(r.defs))
	copy(out, r.defs)
	return out
}

// Order returns every view name in refresh order: single-parent views, then
// multi-parent views, then aggregates, with each view after its sources.
func (r *Registry) Order() ([]string, error) {
	defs := r.Defs()
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].Kind.rank() < defs[j].Kind.rank() })
	return topoOrder(defs)
}

// topoOrder is a Kahn sort, stable by input order.
func topoOrder(defs []Def) ([]string, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	seen := map[string]bool{}
	for _, d := range defs {
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate view name %q", d.Name)
		}
		seen[d.Name] = true
	}
	deg := map[string]int{}
	out := map[string][]string{}
	for _, d := range defs {
		for _, dep := range d.Deps() {
			if !seen[dep] {
				return nil, fmt.Errorf("view %q depends on unknown view %q", d.Name, dep)
			}
			deg[d.Name]++
			out[dep] = append(out[dep], d.Name)
		}
	}

	order := make([]string, 0, len(defs))
	added := map[string]bool{}
	for progressed := true; progressed; {
		progressed = false
		for _, d := range defs {
			if added[d.Name] || deg[d.Name] != 0 {
				continue
			}
			added[d.Name] = true
			order = append(order, d.Name)
			for _, n := range out[d.Name] {
				deg[n]--
			}
			progressed = true
		}
	}
	if len(order) != len(defs) {
		return nil, fmt.Errorf("cycle detected in view graph")
	}
	return order, nil
}

// ValidateOrder checks an explicit refresh order: every name must be known
// and no view may precede a source listed later in names.
func (r *Registry) ValidateOrder(names []string) error {
	pos := make(map[string]int, len(names))
	for i, n := range names {
		if _, ok := r.byKey[n]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownView, n)
		}
		if _, dup := pos[n]; dup {
			return fmt.Errorf("view %q listed twice", n)
		}
		pos[n] = i
	}
	for i, n := range names {
		for _, dep := range r.byKey[n].Deps() {
			if j, ok := pos[dep]; ok && j > i {
				return dependencyError("%s is ordered before its source %s", n, dep)
			}
		}
	}
	return nil
}
