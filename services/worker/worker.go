package worker

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sjsage522/purchasewatcher/config"
	"sjsage522/purchasewatcher/internal/monitor"
	"sjsage522/purchasewatcher/logger"
	perrors "sjsage522/purchasewatcher/pkg/errors"
	"sjsage522/purchasewatcher/services/publisher"
)

// Runner runs one monitoring cycle for a site
type Runner interface {
	Run(ctx context.Context, site config.Site, maxMinutes int) (*monitor.Result, error)
}

// Worker runs every configured site, on demand or on a cron schedule
type Worker struct {
	runner    Runner
	sites     []config.Site
	publisher publisher.Publisher
	schedule  string
	log       *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(runner Runner, sites []config.Site, pub publisher.Publisher, schedule string) *Worker {
	if pub == nil {
		pub = publisher.Noop{}
	}
	return &Worker{
		runner:    runner,
		sites:     sites,
		publisher: pub,
		schedule:  schedule,
		log:       logger.ForWorker(),
	}
}

// Sites returns the configured sites
func (w *Worker) Sites() []config.Site {
	return w.sites
}

// Start runs RunAll on the schedule until ctx is done. An empty schedule returns immediately.
func (w *Worker) Start(ctx context.Context) error {
	if w.schedule == "" {
		w.log.Info().Msg("No crawl schedule configured, periodic runs disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(w.schedule, func() {
		start := time.Now()
		results := w.RunAll(ctx)
		w.log.Info().
			Int("sites", len(results)).
			Dur("elapsed", time.Since(start)).
			Msg("Scheduled run finished")
	})
	if err != nil {
		return err
	}

	w.log.Info().Str("schedule", w.schedule).Msg("Starting scheduled runs")
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// RunAll runs all the sites in parallel and then trims the streams.
// Results keep the order of the configured sites.
func (w *Worker) RunAll(ctx context.Context) []*monitor.Result {
	results := make([]*monitor.Result, len(w.sites))

	var wg sync.WaitGroup
	for i, site := range w.sites {
		wg.Add(1)
		go func(i int, site config.Site) {
			defer wg.Done()
			results[i] = w.runSite(ctx, site)
		}(i, site)
	}
	wg.Wait()

	// Trim all streams after the run
	if err := w.publisher.TrimStreams(ctx); err != nil {
		logger.LogError("worker", err, "Failed to trim streams")
	}

	return results
}

// runSite runs one site; errors are logged and recorded on the result
func (w *Worker) runSite(ctx context.Context, site config.Site) *monitor.Result {
	result, err := w.runner.Run(ctx, site, site.IntervalMinutes)
	if result == nil {
		result = &monitor.Result{Site: site.Name}
	}
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		result.Retryable = perrors.IsRetryable(err)
		w.log.WithError(err).Error().
			Str("site", site.Name).
			Bool("retryable", result.Retryable).
			Msg("Site run failed")
	}
	return result
}
