// Package submission turns user-submitted URLs into smoke-test runs.
//
// A Queue persists every submission to a RecordStore and processes them one
// at a time: discover the site's pages, synthesize smoke cases, run them and
// record the resulting run. Records left running by a crashed process are
// requeued by Initialize.
package submission

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/runner"
	"github.com/roach88/bugzapp/internal/store"
)

// TagPrefix prefixes the run tag that links a run to its submission.
const TagPrefix = "submission:"

// Tag returns the run tag for submission id.
func Tag(id string) string {
	return TagPrefix + id
}

// TargetDiscoverer finds the pages to test for a seed URL.
type TargetDiscoverer interface {
	Discover(ctx context.Context, seed string) (Discovery, error)
}

// RunExecutor executes smoke cases. *runner.Runner satisfies it.
type RunExecutor interface {
	Run(ctx context.Context, req runner.RunRequest) (runner.Result, error)
}

// RunFinder looks up stored runs. store.Storage satisfies it.
type RunFinder interface {
	SearchTestRuns(ctx context.Context, query store.Query) ([]store.TestRunRecord, error)
}

// Options configures a Queue.
type Options struct {
	Store      RecordStore
	Discoverer TargetDiscoverer
	Runner     RunExecutor

	// Runs, when set, is searched for the run tagged with the submission.
	Runs RunFinder

	Metrics *Metrics
	Clock   qa.Clock
	IDs     qa.IDGenerator
	Logger  *slog.Logger
}

// Queue is the durable, single-worker submission queue.
//
// Thread-safety: all methods are safe for concurrent use. mu guards the
// in-memory records; processing serializes submission work so that at
// most one submission is running at a time.
type Queue struct {
	mu      sync.Mutex
	records []qa.SubmissionRecord

	processing sync.Mutex
	pending    *fifo

	store      RecordStore
	discoverer TargetDiscoverer
	runner     RunExecutor
	runs       RunFinder
	metrics    *Metrics
	clock      qa.Clock
	ids        qa.IDGenerator
	logger     *slog.Logger
}

// New creates a Queue. Call Initialize before use.
func New(opts Options) *Queue {
	q := &Queue{
		pending:    newFIFO(),
		store:      opts.Store,
		discoverer: opts.Discoverer,
		runner:     opts.Runner,
		runs:       opts.Runs,
		metrics:    opts.Metrics,
		clock:      opts.Clock,
		ids:        opts.IDs,
		logger:     opts.Logger,
	}
	if q.store == nil {
		q.store = NewFileStore(DefaultStorePath)
	}
	if q.discoverer == nil {
		q.discoverer = NewDiscoverer(DiscoveryOptions{MaxDepth: DefaultMaxDepth, Logger: opts.Logger})
	}
	if q.clock == nil {
		q.clock = qa.SystemClock{}
	}
	if q.ids == nil {
		q.ids = qa.UUIDv7Generator{}
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	return q
}

// Initialize loads persisted submissions, demotes interrupted running
// records to queued, persists the result and enqueues every queued record
// in file order.
func (q *Queue) Initialize(ctx context.Context) error {
	records, err := q.store.Load()
	if err != nil {
		return fmt.Errorf("load submissions: %w", err)
	}

	q.mu.Lock()
	demoted := 0
	now := q.clock.Now()
	for i := range records {
		if records[i].Status == qa.SubmissionRunning {
			records[i].Status = qa.SubmissionQueued
			records[i].UpdatedAt = now
			demoted++
		}
	}
	q.records = records
	if demoted > 0 {
		if err := q.persistLocked(); err != nil {
			q.mu.Unlock()
			return err
		}
	}
	var queued []string
	for _, r := range q.records {
		if r.Status == qa.SubmissionQueued {
			queued = append(queued, r.ID)
		}
	}
	q.mu.Unlock()

	for _, id := range queued {
		q.pending.Enqueue(id)
	}
	q.metrics.setDepth(q.pending.Len())
	q.logger.Info("submission queue initialized", "records", len(records), "requeued", demoted, "pending", len(queued))
	return nil
}

// Create queues a new submission for rawURL.
func (q *Queue) Create(ctx context.Context, rawURL string) (qa.SubmissionRecord, error) {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return qa.SubmissionRecord{}, err
	}

	now := q.clock.Now()
	record := qa.SubmissionRecord{
		ID:        q.ids.Generate(),
		URL:       u.String(),
		Status:    qa.SubmissionQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.mu.Lock()
	q.records = append(q.records, record)
	if err := q.persistLocked(); err != nil {
		q.records = q.records[:len(q.records)-1]
		q.mu.Unlock()
		return qa.SubmissionRecord{}, fmt.Errorf("create submission: %w", err)
	}
	q.mu.Unlock()

	q.enqueue(record.ID)
	q.logger.Info("submission created", "id", record.ID, "url", record.URL)
	return record, nil
}

// Retry requeues a failed submission and clears its error.
func (q *Queue) Retry(ctx context.Context, id string) (qa.SubmissionRecord, error) {
	record, err := q.transition(id, qa.SubmissionQueued, func(r *qa.SubmissionRecord) {
		r.Error = ""
	})
	if err != nil {
		return qa.SubmissionRecord{}, fmt.Errorf("retry submission: %w", err)
	}
	q.enqueue(id)
	q.logger.Info("submission requeued", "id", id)
	return record, nil
}

// List returns every submission, newest first.
func (q *Queue) List() []qa.SubmissionRecord {
	q.mu.Lock()
	out := slices.Clone(q.records)
	q.mu.Unlock()

	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders records by creation time descending, then id
// descending.
func SortNewestFirst(records []qa.SubmissionRecord) {
	slices.SortStableFunc(records, func(a, b qa.SubmissionRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

// Get returns submission id.
func (q *Queue) Get(id string) (qa.SubmissionRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.indexLocked(id)
	if i < 0 {
		return qa.SubmissionRecord{}, qa.NewError(qa.ErrCodeNotFound, "submission %s not found", id)
	}
	return q.records[i], nil
}

// Pending returns the number of submissions waiting to be processed.
func (q *Queue) Pending() int {
	return q.pending.Len()
}

// Run processes submissions until ctx is cancelled or Close is called.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info("submission worker starting")
	for {
		if id, ok := q.pending.TryDequeue(); ok {
			q.metrics.setDepth(q.pending.Len())
			q.process(ctx, id)
			continue
		}

		select {
		case <-ctx.Done():
			q.logger.Info("submission worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-q.pending.Wait():
			if q.pending.Closed() && q.pending.Len() == 0 {
				q.logger.Info("submission worker stopping: queue closed")
				return nil
			}
		}
	}
}

// ProcessPending drains the queue synchronously and returns the number of
// submissions processed.
func (q *Queue) ProcessPending(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		id, ok := q.pending.TryDequeue()
		if !ok {
			return n, nil
		}
		q.metrics.setDepth(q.pending.Len())
		q.process(ctx, id)
		n++
	}
}

// Close stops Run once the queue is empty. Further submissions are
// persisted but not enqueued until the next Initialize.
func (q *Queue) Close() {
	q.pending.Close()
}

func (q *Queue) enqueue(id string) {
	q.pending.Enqueue(id)
	q.metrics.setDepth(q.pending.Len())
}

// process runs one submission to completion or failure. Errors never
// escape: they end up on the record.
func (q *Queue) process(ctx context.Context, id string) {
	q.processing.Lock()
	defer q.processing.Unlock()

	record, err := q.transition(id, qa.SubmissionRunning, func(r *qa.SubmissionRecord) {
		r.Error = ""
	})
	if err != nil {
		q.logger.Warn("skipping submission", "id", id, "error", err)
		return
	}

	started := time.Now()
	q.logger.Info("submission running", "id", id, "url", record.URL)

	runID, runStatus, err := q.execute(ctx, record)
	if err != nil {
		q.logger.Error("submission failed", "id", id, "error", err)
		if _, terr := q.transition(id, qa.SubmissionFailed, func(r *qa.SubmissionRecord) {
			r.Error = err.Error()
		}); terr != nil {
			q.logger.Error("record submission failure", "id", id, "error", terr)
		}
		q.metrics.observe(string(qa.SubmissionFailed), time.Since(started))
		return
	}

	if _, err := q.transition(id, qa.SubmissionCompleted, func(r *qa.SubmissionRecord) {
		r.RunID = runID
		r.RunStatus = runStatus
	}); err != nil {
		q.logger.Error("record submission completion", "id", id, "error", err)
	}
	q.metrics.observe(string(qa.SubmissionCompleted), time.Since(started))
	q.logger.Info("submission completed", "id", id, "run", runID, "status", runStatus)
}

// execute performs discovery and the smoke run. A panic is converted to
// an error so the submission is marked failed instead of killing the worker.
func (q *Queue) execute(ctx context.Context, record qa.SubmissionRecord) (runID string, runStatus qa.StepStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = qa.NewError(qa.ErrCodeSubmission, "panic: %v", r)
		}
	}()

	found, err := q.discoverer.Discover(ctx, record.URL)
	if err != nil {
		return "", "", qa.WrapError(qa.ErrCodeSubmission, err, "discover targets")
	}
	info := found.Info
	if _, err := q.update(record.ID, func(r *qa.SubmissionRecord) {
		r.Targets = found.Targets
		r.Discovery = &info
	}); err != nil {
		return "", "", err
	}

	if q.runner == nil {
		return "", "", qa.NewError(qa.ErrCodeConfiguration, "submission queue has no runner")
	}
	tag := Tag(record.ID)
	result, err := q.runner.Run(ctx, runner.RunRequest{
		SuiteID:          "submission-" + record.ID,
		SuiteDescription: "Smoke tests for " + record.URL,
		TestCases:        BuildSmokeCases(found.Targets),
		Metadata: store.Metadata{
			Tags: []string{tag},
			URL:  record.URL,
		},
	})
	if err != nil {
		return "", "", qa.WrapError(qa.ErrCodeSubmission, err, "run smoke tests")
	}

	runID, runStatus = result.RecordID, result.Summary.Status
	if q.runs != nil {
		runs, err := q.runs.SearchTestRuns(ctx, store.Query{Tags: []string{tag}})
		if err != nil {
			return "", "", qa.WrapError(qa.ErrCodeSubmission, err, "find run for %s", tag)
		}
		if len(runs) > 0 {
			runID, runStatus = runs[0].ID, runs[0].Summary.Status
		}
	}
	return runID, runStatus, nil
}

// transition moves a record to next if the state machine allows it,
// applies mutate and persists.
func (q *Queue) transition(id string, next qa.SubmissionStatus, mutate func(*qa.SubmissionRecord)) (qa.SubmissionRecord, error) {
	return q.modify(id, func(r *qa.SubmissionRecord) error {
		if !r.Status.CanTransition(next) {
			return qa.NewError(qa.ErrCodeInvalidTransition,
				"submission %s cannot move from %s to %s", id, r.Status, next)
		}
		r.Status = next
		mutate(r)
		return nil
	})
}

// update applies mutate without a status change and persists.
func (q *Queue) update(id string, mutate func(*qa.SubmissionRecord)) (qa.SubmissionRecord, error) {
	return q.modify(id, func(r *qa.SubmissionRecord) error {
		mutate(r)
		return nil
	})
}

func (q *Queue) modify(id string, change func(*qa.SubmissionRecord) error) (qa.SubmissionRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return qa.SubmissionRecord{}, qa.NewError(qa.ErrCodeNotFound, "submission %s not found", id)
	}
	prev := q.records[i]
	next := prev
	if err := change(&next); err != nil {
		return qa.SubmissionRecord{}, err
	}
	next.UpdatedAt = q.clock.Now()
	q.records[i] = next
	if err := q.persistLocked(); err != nil {
		q.records[i] = prev
		return qa.SubmissionRecord{}, err
	}
	return next, nil
}

func (q *Queue) indexLocked(id string) int {
	return slices.IndexFunc(q.records, func(r qa.SubmissionRecord) bool { return r.ID == id })
}

func (q *Queue) persistLocked() error {
	return q.store.Save(slices.Clone(q.records))
}
