package state

import (
	"sort"
	"sync"
	"time"

	"github.com/ylchen07/confluence-dc-mcp/internal/atlassian"
)

// Session holds the process-wide bookkeeping reported by the health check.
// It never stores Confluence content.
type Session struct {
	mu        sync.RWMutex
	startedAt time.Time
	lastProbe *ProbeRecord
	ops       map[string]*OpStats
}

// ProbeRecord is the last connectivity probe and when it ran.
type ProbeRecord struct {
	At     time.Time             `json:"at"`
	Result atlassian.ProbeResult `json:"result"`
}

// OpStats counts the outcomes of one tool.
type OpStats struct {
	Calls     int            `json:"calls"`
	Failures  int            `json:"failures"`
	ByKind    map[string]int `json:"byKind"`
	LastError string         `json:"lastError"`
	LastCall  time.Time      `json:"lastCall"`
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	StartedAt  time.Time          `json:"startedAt"`
	Uptime     time.Duration      `json:"uptime"`
	LastProbe  *ProbeRecord       `json:"lastProbe"`
	Operations map[string]OpStats `json:"operations"`
}

// NewSession creates a Session started at now.
func NewSession(now time.Time) *Session {
	return &Session{
		startedAt: now,
		ops:       make(map[string]*OpStats),
	}
}

// StartedAt returns the session start time.
func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// SetProbe stores the latest probe result.
func (s *Session) SetProbe(at time.Time, result atlassian.ProbeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProbe = &ProbeRecord{At: at, Result: result}
}

// LastProbe returns the latest probe result, if any.
func (s *Session) LastProbe() (ProbeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastProbe == nil {
		return ProbeRecord{}, false
	}
	return *s.lastProbe, true
}

// RecordSuccess counts a successful call of tool.
func (s *Session) RecordSuccess(tool string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats(tool)
	stats.Calls++
	stats.LastCall = at
}

// RecordFailure counts a failed call of tool with its error kind.
func (s *Session) RecordFailure(tool, kind, message string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats(tool)
	stats.Calls++
	stats.Failures++
	stats.ByKind[kind]++
	stats.LastError = message
	stats.LastCall = at
}

func (s *Session) stats(tool string) *OpStats {
	stats, ok := s.ops[tool]
	if !ok {
		stats = &OpStats{ByKind: make(map[string]int)}
		s.ops[tool] = stats
	}
	return stats
}

// Snapshot copies the session state. Callers may mutate the result freely.
func (s *Session) Snapshot(now time.Time) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		StartedAt:  s.startedAt,
		Uptime:     now.Sub(s.startedAt),
		Operations: make(map[string]OpStats, len(s.ops)),
	}
	if s.lastProbe != nil {
		probe := *s.lastProbe
		snap.LastProbe = &probe
	}
	for name, stats := range s.ops {
		copied := *stats
		copied.ByKind = make(map[string]int, len(stats.ByKind))
		for k, v := range stats.ByKind {
			copied.ByKind[k] = v
		}
		snap.Operations[name] = copied
	}
	return snap
}

// Tools returns the names of tools with recorded calls, sorted.
func (s *Session) Tools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.ops))
	for name := range s.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
