// Package metrics provides lightweight, lock-minimal counters for the
// guardian's interception workflow and history scans.
//
// Counters use sync/atomic so the interactive path incurs no mutex
// contention. Latency statistics use a single mutex per dimension; they are
// updated at most once per remote call.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// knownOutcomes lists every submission outcome label the controller reports.
// Used to pre-populate the per-outcome map in New() so Snapshot() can
// iterate a fixed set without racing on map writes.
var knownOutcomes = []string{
	"inactive", "busy", "no_target", "empty", "clean",
	"cancelled", "redacted", "proceeded", "failed",
}

// Metrics holds all runtime counters for a running guardian instance.
// The zero value is NOT valid for the per-outcome counters; use New().
type Metrics struct {
	// Detection counters
	DetectRemote   atomic.Int64
	DetectFallback atomic.Int64
	DetectPositive atomic.Int64

	// Anonymization counters
	AnonymizeCalls    atomic.Int64
	AnonymizeFailures atomic.Int64
	AnonymizeCacheHit atomic.Int64
	SpansReported     atomic.Int64

	// History scan counters
	ScansTotal        atomic.Int64
	ScansFailed       atomic.Int64
	MessagesScanned   atomic.Int64
	MessagesFailed    atomic.Int64
	LeaksFound        atomic.Int64
	NotificationsSent atomic.Int64

	// Maps are written only in New(); concurrent reads are safe without a lock.
	outcomes map[string]*atomic.Int64

	detectMu   sync.Mutex
	detectStat latencyStats

	anonMu   sync.Mutex
	anonStat latencyStats

	startTime time.Time
}

// New returns a new Metrics with the start time recorded and the
// per-outcome counters pre-populated.
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		outcomes:  make(map[string]*atomic.Int64, len(knownOutcomes)),
	}
	for _, o := range knownOutcomes {
		m.outcomes[o] = new(atomic.Int64)
	}
	return m
}

// RecordOutcome increments the counter for one finished submission.
// Unknown labels are silently ignored.
func (m *Metrics) RecordOutcome(outcome string) {
	if c, ok := m.outcomes[outcome]; ok {
		c.Add(1)
	}
}

// Outcome returns the current count for a submission outcome label.
func (m *Metrics) Outcome(outcome string) int64 {
	if c, ok := m.outcomes[outcome]; ok {
		return c.Load()
	}
	return 0
}

// RecordDetectLatency records the duration of one detection call.
func (m *Metrics) RecordDetectLatency(d time.Duration) {
	m.detectMu.Lock()
	m.detectStat.record(float64(d.Microseconds()) / 1000.0)
	m.detectMu.Unlock()
}

// RecordAnonLatency records the duration of one anonymization call.
func (m *Metrics) RecordAnonLatency(d time.Duration) {
	m.anonMu.Lock()
	m.anonStat.record(float64(d.Microseconds()) / 1000.0)
	m.anonMu.Unlock()
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON encoding.
func (m *Metrics) Snapshot() Snapshot {
	m.detectMu.Lock()
	detect := m.detectStat.snapshot()
	m.detectMu.Unlock()

	m.anonMu.Lock()
	anon := m.anonStat.snapshot()
	m.anonMu.Unlock()

	outcomes := make(map[string]int64, len(m.outcomes))
	var total int64
	for o, c := range m.outcomes {
		n := c.Load()
		total += n
		if n > 0 {
			outcomes[o] = n
		}
	}

	return Snapshot{
		Submissions: SubmissionSnapshot{
			Total:    total,
			Outcomes: outcomes,
		},
		Detection: DetectionSnapshot{
			Remote:   m.DetectRemote.Load(),
			Fallback: m.DetectFallback.Load(),
			Positive: m.DetectPositive.Load(),
		},
		Anonymization: AnonymizationSnapshot{
			Calls:    m.AnonymizeCalls.Load(),
			Failures: m.AnonymizeFailures.Load(),
			CacheHit: m.AnonymizeCacheHit.Load(),
			Spans:    m.SpansReported.Load(),
		},
		Scans: ScanSnapshot{
			Total:          m.ScansTotal.Load(),
			Failed:         m.ScansFailed.Load(),
			Messages:       m.MessagesScanned.Load(),
			MessagesFailed: m.MessagesFailed.Load(),
			Leaks:          m.LeaksFound.Load(),
			Notifications:  m.NotificationsSent.Load(),
		},
		Latency: LatencyGroup{
			DetectMs:    detect,
			AnonymizeMs: anon,
		},
		UptimeSecs: time.Since(m.startTime).Seconds(),
	}
}

// --- JSON-serialisable snapshot types ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Submissions   SubmissionSnapshot    `json:"submissions"`
	Detection     DetectionSnapshot     `json:"detection"`
	Anonymization AnonymizationSnapshot `json:"anonymization"`
	Scans         ScanSnapshot          `json:"scans"`
	Latency       LatencyGroup          `json:"latency"`
	UptimeSecs    float64               `json:"uptimeSecs"`
}

// SubmissionSnapshot holds interception counters.
type SubmissionSnapshot struct {
	Total int64 `json:"total"`

	// Only outcomes with non-zero counts appear.
	Outcomes map[string]int64 `json:"outcomes,omitempty"`
}

// DetectionSnapshot holds detection counters by source.
type DetectionSnapshot struct {
	Remote   int64 `json:"remote"`
	Fallback int64 `json:"fallback"`
	Positive int64 `json:"positive"`
}

// AnonymizationSnapshot holds anonymization call counters.
type AnonymizationSnapshot struct {
	Calls    int64 `json:"calls"`
	Failures int64 `json:"failures"`
	CacheHit int64 `json:"cacheHits"`
	Spans    int64 `json:"spans"`
}

// ScanSnapshot holds history scan counters.
type ScanSnapshot struct {
	Total          int64 `json:"total"`
	Failed         int64 `json:"failed"`
	Messages       int64 `json:"messages"`
	MessagesFailed int64 `json:"messagesFailed"`
	Leaks          int64 `json:"leaks"`
	Notifications  int64 `json:"notifications"`
}

// LatencyGroup groups the two latency dimensions.
type LatencyGroup struct {
	DetectMs    LatencySnapshot `json:"detectMs"`
	AnonymizeMs LatencySnapshot `json:"anonymizeMs"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

// --- internal accumulator ---

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}
