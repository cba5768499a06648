package app

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// ReportBuilder is the part of the portfolio service the worker drives.
type ReportBuilder interface {
	BuildReport(ctx context.Context, period models.Period) (*models.PortfolioReport, error)
}

// ReportResult is the outcome of one report request.
type ReportResult struct {
	Period models.Period
	Report *models.PortfolioReport
	Err    error
}

type reportJob struct {
	seq    uint64
	period models.Period
	ctx    context.Context
}

// ReportWorker computes reports off the caller's goroutine, one at a time.
// A new Request cancels the one in flight; only the latest request's result
// is delivered on Results.
type ReportWorker struct {
	builder ReportBuilder
	timeout time.Duration
	logger  *common.Logger

	mu      sync.Mutex
	seq     uint64
	pending *reportJob
	cancel  context.CancelFunc
	closed  bool

	wake    chan struct{}
	results chan ReportResult
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewReportWorker starts the worker goroutine. timeout bounds each
// computation; zero means no limit.
func NewReportWorker(builder ReportBuilder, timeout time.Duration, logger *common.Logger) *ReportWorker {
	w := &ReportWorker{
		builder: builder,
		timeout: timeout,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		results: make(chan ReportResult, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Results delivers the outcome of the latest request. Closed by Close.
func (w *ReportWorker) Results() <-chan ReportResult {
	return w.results
}

// Request asks for a report over period, superseding any earlier request.
func (w *ReportWorker) Request(period models.Period) {
	select {
	case <-w.done:
		return
	default:
	}

	if !w.enqueue(period) {
		return
	}

	w.logger.Debug().Str("period", period.String()).Msg("Report requested")

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// enqueue replaces the pending job. It reports false once Close has run, in
// which case no context is created.
func (w *ReportWorker) enqueue(period models.Period) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}

	if w.cancel != nil {
		w.cancel()
	}
	var ctx context.Context
	if w.timeout > 0 {
		ctx, w.cancel = context.WithTimeout(context.Background(), w.timeout)
	} else {
		ctx, w.cancel = context.WithCancel(context.Background())
	}
	w.seq++
	w.pending = &reportJob{seq: w.seq, period: period, ctx: ctx}
	return true
}

// Close cancels any computation in flight, stops the worker and closes Results.
func (w *ReportWorker) Close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		if w.cancel != nil {
			w.cancel()
			w.cancel = nil
		}
		w.seq++ // invalidates the job in flight
		w.pending = nil
		w.mu.Unlock()

		close(w.done)
		w.wg.Wait()
		close(w.results)
	})
}

func (w *ReportWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case <-w.wake:
		}

		w.mu.Lock()
		job := w.pending
		w.pending = nil
		w.mu.Unlock()
		if job == nil {
			continue
		}

		report, err := w.builder.BuildReport(job.ctx, job.period)

		if !w.isCurrent(job.seq) {
			w.logger.Debug().Str("period", job.period.String()).Msg("Dropping superseded report")
			continue
		}
		if err != nil {
			w.logger.Warn().Err(err).Str("period", job.period.String()).Msg("Report failed")
		}

		select {
		case w.results <- ReportResult{Period: job.period, Report: report, Err: err}:
		case <-w.done:
			return
		}
	}
}

func (w *ReportWorker) isCurrent(seq uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return seq == w.seq
}
