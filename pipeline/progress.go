package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// MaxReportedFailures bounds the failures shown in logs and reports.
const MaxReportedFailures = 10

// Failure is one record the pipeline could not embed.
type Failure struct {
	RecordID  string    `json:"recordId"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Progress is a snapshot of a pipeline run.
type Progress struct {
	Total        int        `json:"total"`
	Processed    int        `json:"processed"`
	Successful   int        `json:"successful"`
	Failed       int        `json:"failed"`
	Skipped      int        `json:"skipped"`
	CurrentBatch int        `json:"currentBatch"`
	TotalBatches int        `json:"totalBatches"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Tokens       int        `json:"tokens"`
	Cost         float64    `json:"cost"`
	Failures     []Failure  `json:"failures,omitempty"`
}

func (p *Progress) addFailure(recordID string, err error) {
	p.Failed++
	p.Processed++
	p.Failures = append(p.Failures, Failure{RecordID: recordID, Error: err.Error(), Timestamp: time.Now().UTC()})
}

// ReportedFailures returns at most the first MaxReportedFailures failures.
func (p *Progress) ReportedFailures() []Failure {
	if len(p.Failures) > MaxReportedFailures {
		return p.Failures[:MaxReportedFailures]
	}
	return p.Failures
}

func (p *Progress) clone() *Progress {
	c := *p
	c.Failures = append([]Failure(nil), p.Failures...)
	if p.EndTime != nil {
		end := *p.EndTime
		c.EndTime = &end
	}
	return &c
}

// ProgressTracker tracks and reports progress of pipeline runs.
type ProgressTracker struct {
	writer         io.Writer
	total          int
	current        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: total number of items to process
// reportInterval: report progress every N items
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.lastReported = 0
}

// Increment increases the current progress by the specified amount.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current += delta
	if p.current > p.total {
		p.current = p.total
	}

	// Report if we've crossed a report interval
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Finish marks the operation as complete and prints final progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}

	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	rate := 0.0
	if elapsed := time.Since(p.startTime).Seconds(); elapsed > 0 {
		rate = float64(p.current) / elapsed
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %.1f records/s",
		p.current, p.total, percentage, rate)
}
