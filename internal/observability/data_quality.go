package observability

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// SkipCounts is the per-pass distribution of dropped input rows.
type SkipCounts struct {
	MissingField     map[string]int
	UnknownVariant   int
	UnresolvedParent int
	Duplicate        int
}

func (s SkipCounts) dropped() int {
	n := s.UnknownVariant + s.UnresolvedParent
	for _, c := range s.MissingField {
		n += c
	}
	return n
}

type dqWarnState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var dqWarns dqWarnState

// dqWarnInterval throttles repeated WARN lines for the same stage and source.
const dqWarnInterval = time.Minute

// ReportSkips records skip counters and logs a WARN summary when rows were
// dropped. Duplicates are counted but never warned about.
func ReportSkips(ctx context.Context, log *logger.Logger, m *Metrics, stage string, skips SkipCounts, meta map[string]any) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}
	for field, n := range skips.MissingField {
		m.ObserveSkipped("missing_field", field, n)
	}
	m.ObserveSkipped("unknown_variant", "", skips.UnknownVariant)
	m.ObserveSkipped("unresolved_parent", "", skips.UnresolvedParent)
	m.ObserveSkipped("duplicate", "", skips.Duplicate)

	if skips.dropped() == 0 || log == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if id := TraceID(ctx); id != "" {
		meta["trace_id"] = id
	}
	throttleKey := stage
	if src, ok := meta["source"].(string); ok {
		throttleKey += "|" + src
	}
	if !dqWarns.allow(throttleKey, time.Now()) {
		log.Debug("data quality issue detected (throttled)", "stage", stage, "dropped", skips.dropped())
		return
	}

	fields := make([]string, 0, len(skips.MissingField))
	for f := range skips.MissingField {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	log.Warn("data quality issue detected",
		"stage", stage,
		"dropped", skips.dropped(),
		"missing_fields", fields,
		"missing_field_counts", skips.MissingField,
		"unknown_variant", skips.UnknownVariant,
		"unresolved_parent", skips.UnresolvedParent,
		"meta", meta,
	)
}

func (s *dqWarnState) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = map[string]time.Time{}
	}
	if prev, ok := s.last[key]; ok && now.Sub(prev) < dqWarnInterval {
		return false
	}
	s.last[key] = now
	return true
}
