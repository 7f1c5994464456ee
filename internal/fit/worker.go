package fit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/star/tlefit/internal/tle"
)

// BatchResult pairs one catalog record with its fit outcome. Err is set
// when the fit aborted (propagation failure, degenerate orbit); Result is
// valid otherwise, including the non-converged case.
type BatchResult struct {
	SatNum int
	Result Result
	Err    error
}

type batchJob struct {
	rec    tle.Record
	target time.Time
}

// Pool fans independent element fits out over a fixed number of
// goroutines. Fits share nothing, so the batch is embarrassingly parallel.
type Pool struct {
	workers int
	fitter  *Fitter
	logger  *slog.Logger
}

// NewPool creates a pool of the given size around a Fitter.
func NewPool(workers int, fitter *Fitter, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, fitter: fitter, logger: logger}
}

// RefitBatch refits every record to the common target epoch. Failed fits
// are logged and reported in their BatchResult; the batch itself only stops
// early on context cancellation.
func (p *Pool) RefitBatch(ctx context.Context, recs []tle.Record, target time.Time) []BatchResult {
	if len(recs) == 0 {
		return nil
	}

	jobs := make(chan batchJob, p.workers*2)
	results := make(chan BatchResult, p.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res, err := p.fitter.Propagate(job.rec, job.target)
				br := BatchResult{SatNum: job.rec.SatNum, Result: res, Err: err}
				select {
				case results <- br:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, rec := range recs {
			select {
			case jobs <- batchJob{rec: rec, target: target}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]BatchResult, 0, len(recs))
	for br := range results {
		if br.Err != nil {
			p.logger.Warn("batch fit failed",
				"satnum", br.SatNum,
				"error", br.Err,
			)
		}
		out = append(out, br)
	}
	return out
}
