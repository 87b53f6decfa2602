package session

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/Konsultn-Engineering/txscope/utils"
)

// QueryLog is one statement recorded by a Tracker.
type QueryLog struct {
	Query       string
	Params      []any
	Timestamp   time.Time
	StackTrace  []string
	Fingerprint string
}

// Tracker records statements while enabled. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	enabled bool
	logs    []QueryLog
}

// NewTracker returns an enabled, empty tracker.
func NewTracker() *Tracker {
	return &Tracker{enabled: true}
}

func (t *Tracker) Enable() {
	t.setEnabled(true)
}

func (t *Tracker) Disable() {
	t.setEnabled(false)
}

func (t *Tracker) IsEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// setEnabled stores v and returns the previous state.
func (t *Tracker) setEnabled(v bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.enabled
	t.enabled = v
	return prev
}

// Record appends a log entry stamped with the current UTC time. It reports
// false and records nothing while the tracker is disabled.
func (t *Tracker) Record(query string, params []any, stack []string) bool {
	entry := QueryLog{
		Query:       query,
		Params:      slices.Clone(params),
		Timestamp:   time.Now().UTC(),
		StackTrace:  stack,
		Fingerprint: utils.FingerprintSQL(query),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return false
	}
	t.logs = append(t.logs, entry)
	return true
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.logs)
}

// Queries returns a copy of the recorded entries in execution order.
func (t *Tracker) Queries() []QueryLog {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]QueryLog, len(t.logs))
	for i, l := range t.logs {
		l.Params = slices.Clone(l.Params)
		l.StackTrace = slices.Clone(l.StackTrace)
		out[i] = l
	}
	return out
}

// Clear drops every recorded entry. The enabled state is unchanged.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logs = nil
}

// Export renders the entries as plain maps keyed query, params, timestamp,
// stack_trace and fingerprint. Timestamps are RFC 3339 strings.
func (t *Tracker) Export() []map[string]any {
	logs := t.Queries()
	out := make([]map[string]any, 0, len(logs))
	for _, l := range logs {
		params := l.Params
		if params == nil {
			params = []any{}
		}
		stack := l.StackTrace
		if stack == nil {
			stack = []string{}
		}
		out = append(out, map[string]any{
			"query":       l.Query,
			"params":      params,
			"timestamp":   l.Timestamp.Format(time.RFC3339Nano),
			"stack_trace": stack,
			"fingerprint": l.Fingerprint,
		})
	}
	return out
}

func (t *Tracker) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Export())
}

// StatementSummary counts executions of one statement shape.
type StatementSummary struct {
	Fingerprint string `json:"fingerprint"`
	Query       string `json:"query"`
	Count       int    `json:"count"`
}

// Summary groups the entries by fingerprint, most frequent first. Ties keep
// first-execution order. A high count for one shape usually means a query
// issued per row.
func (t *Tracker) Summary() []StatementSummary {
	logs := t.Queries()
	index := make(map[string]int)
	var out []StatementSummary
	for _, l := range logs {
		if i, ok := index[l.Fingerprint]; ok {
			out[i].Count++
			continue
		}
		index[l.Fingerprint] = len(out)
		out = append(out, StatementSummary{Fingerprint: l.Fingerprint, Query: l.Query, Count: 1})
	}
	slices.SortStableFunc(out, func(a, b StatementSummary) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return out
}
