package plan

import (
	"sync"
	"time"

	"github.com/viant/webpilot/internal/clock"
)

// Snapshot is a structured reasoning record produced by one re-planning
// cycle.  Snapshots are immutable once appended to a Log.
type Snapshot struct {
	StateAnalysis      string    `json:"stateAnalysis"`
	ProgressEvaluation string    `json:"progressEvaluation"`
	Challenges         string    `json:"challenges"`
	NextSteps          []string  `json:"nextSteps"`
	Reasoning          string    `json:"reasoning"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Log is an ordered, append-only collection of plan snapshots with a single
// "seen" flag tracking whether a consumer has observed the latest entry.
type Log struct {
	mu        sync.RWMutex
	snapshots []*Snapshot
	seen      bool
}

// NewLog creates an empty plan log.
func NewLog() *Log {
	return &Log{seen: true}
}

// Append adds a snapshot to the log and marks the log unseen.
func (l *Log) Append(s *Snapshot) {
	if s == nil {
		return
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = clock.Now()
	}
	l.mu.Lock()
	l.snapshots = append(l.snapshots, s)
	l.seen = false
	l.mu.Unlock()
}

// Snapshots returns a copy of the ordered snapshot list together with the
// seen flag (true when the latest snapshot has been observed).
func (l *Log) Snapshots() ([]*Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Snapshot, len(l.snapshots))
	copy(out, l.snapshots)
	return out, l.seen
}

// Latest returns the most recent snapshot or nil when the log is empty.
func (l *Log) Latest() *Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.snapshots) == 0 {
		return nil
	}
	return l.snapshots[len(l.snapshots)-1]
}

// MarkSeen records that a consumer has observed the latest snapshot.
func (l *Log) MarkSeen() {
	l.mu.Lock()
	l.seen = true
	l.mu.Unlock()
}

// Len returns the number of snapshots in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.snapshots)
}
