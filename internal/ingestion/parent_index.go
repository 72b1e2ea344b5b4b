package ingestion

import (
	"context"
	"sort"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
)

// ParentIndex resolves a row to the parent_reference its observation
// stores. It holds every stored parent the batch could refer to.
type ParentIndex struct {
	natural map[types.ParentType]map[types.NaturalKey]int64
	record  map[types.ParentType]map[string]int64
}

func newParentIndex() ParentIndex {
	return ParentIndex{
		natural: map[types.ParentType]map[types.NaturalKey]int64{},
		record:  map[types.ParentType]map[string]int64{},
	}
}

func (ix ParentIndex) addNatural(t types.ParentType, keys map[types.NaturalKey]int64) {
	m := ix.natural[t]
	if m == nil {
		m = map[types.NaturalKey]int64{}
		ix.natural[t] = m
	}
	for k, id := range keys {
		m[k] = id
	}
}

func (ix ParentIndex) addRecord(t types.ParentType, keys map[string]int64) {
	m := ix.record[t]
	if m == nil {
		m = map[string]int64{}
		ix.record[t] = m
	}
	for k, id := range keys {
		m[k] = id
	}
}

// Reference returns the parent_reference for row under variant v.
func (ix ParentIndex) Reference(row Row, v types.Variant) (string, bool) {
	if v.Key == types.KeyRecord {
		key := row.recordKey()
		if key == "" {
			return "", false
		}
		if _, ok := ix.record[v.Type][key]; !ok {
			return "", false
		}
		return key, true
	}
	nk, _, ok := row.naturalKey()
	if !ok {
		return "", false
	}
	id, ok := ix.natural[v.Type][nk]
	if !ok {
		return "", false
	}
	return types.IDReference(id), true
}

// Size is the number of indexed parents.
func (ix ParentIndex) Size() int {
	n := 0
	for _, m := range ix.natural {
		n += len(m)
	}
	for _, m := range ix.record {
		n += len(m)
	}
	return n
}

// BuildParentIndex reads the stored parents of every variant the batch
// mentions, restricted to the batch's periods and record keys.
func BuildParentIndex(ctx context.Context, parents repos.ParentRecordRepo, rows []Row) (ParentIndex, error) {
	ix := newParentIndex()
	periods := map[types.ParentType]map[int]struct{}{}
	recordKeys := map[types.ParentType]map[string]struct{}{}
	for _, row := range rows {
		v, err := row.variant()
		if err != nil {
			continue
		}
		if v.Key == types.KeyRecord {
			if k := row.recordKey(); k != "" {
				addToSet(recordKeys, v.Type, k)
			}
			continue
		}
		if row.Period != nil {
			addToSet(periods, v.Type, *row.Period)
		}
	}

	dbc := dbctx.New(ctx)
	for _, v := range types.Variants() {
		if set, ok := periods[v.Type]; ok {
			keys, err := parents.NaturalKeys(dbc, v.Type, sortedInts(set))
			if err != nil {
				return ix, err
			}
			ix.addNatural(v.Type, keys)
		}
		if set, ok := recordKeys[v.Type]; ok {
			keys, err := parents.RecordKeys(dbc, v.Type, sortedStrings(set))
			if err != nil {
				return ix, err
			}
			ix.addRecord(v.Type, keys)
		}
	}
	return ix, nil
}

func addToSet[K comparable](m map[types.ParentType]map[K]struct{}, t types.ParentType, k K) {
	set := m[t]
	if set == nil {
		set = map[K]struct{}{}
		m[t] = set
	}
	set[k] = struct{}{}
}

func sortedInts(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
