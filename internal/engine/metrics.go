package engine

import (
	"sync"
	"time"
)

// Metrics tracks engine statistics.
type Metrics struct {
	mu sync.RWMutex

	// Cycle statistics
	cyclesStarted   int64
	cyclesSucceeded int64
	cyclesFailed    int64

	// Artifact statistics
	artifactWrites int64
	artifactSkips  int64

	// Status statistics
	statusDrops int64

	// Timing
	lastCycleAt   time.Time
	lastSuccessAt time.Time
	lastFailureAt time.Time
}

// MetricsSnapshot is a point-in-time copy of the metrics.
type MetricsSnapshot struct {
	CyclesStarted   int64     `json:"cyclesStarted"`
	CyclesSucceeded int64     `json:"cyclesSucceeded"`
	CyclesFailed    int64     `json:"cyclesFailed"`
	ArtifactWrites  int64     `json:"artifactWrites"`
	ArtifactSkips   int64     `json:"artifactSkips"`
	StatusDrops     int64     `json:"statusDrops"`
	LastCycleAt     time.Time `json:"lastCycleAt"`
	LastSuccessAt   time.Time `json:"lastSuccessAt"`
	LastFailureAt   time.Time `json:"lastFailureAt"`
}

func newMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordCycleStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cyclesStarted++
	m.lastCycleAt = time.Now()
}

func (m *Metrics) recordCycleSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cyclesSucceeded++
	m.lastSuccessAt = time.Now()
}

func (m *Metrics) recordCycleFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cyclesFailed++
	m.lastFailureAt = time.Now()
}

func (m *Metrics) recordArtifact(wrote bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wrote {
		m.artifactWrites++
	} else {
		m.artifactSkips++
	}
}

func (m *Metrics) recordStatusDrops(n int) {
	if n == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusDrops += int64(n)
}

// Snapshot returns a copy of the current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		CyclesStarted:   m.cyclesStarted,
		CyclesSucceeded: m.cyclesSucceeded,
		CyclesFailed:    m.cyclesFailed,
		ArtifactWrites:  m.artifactWrites,
		ArtifactSkips:   m.artifactSkips,
		StatusDrops:     m.statusDrops,
		LastCycleAt:     m.lastCycleAt,
		LastSuccessAt:   m.lastSuccessAt,
		LastFailureAt:   m.lastFailureAt,
	}
}
