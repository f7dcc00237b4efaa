// Package harvest orchestrates the scan, aggregate and export steps of
// one contact-collection run.
package harvest

import (
	"context"
	"errors"
	"time"

	"github.com/contactkit/mailharvest/internal/aggregate"
	"github.com/contactkit/mailharvest/internal/contact"
	"github.com/contactkit/mailharvest/internal/export"
	"github.com/contactkit/mailharvest/internal/logging"
	"github.com/contactkit/mailharvest/internal/mailstore"
	"github.com/contactkit/mailharvest/internal/progress"
	"github.com/contactkit/mailharvest/internal/resolve"
	"github.com/contactkit/mailharvest/internal/role"
	"github.com/contactkit/mailharvest/internal/scan"
)

// ErrNoContacts reports that a run found zero valid contacts. It is a
// distinct outcome, not a failure: no export file is written.
var ErrNoContacts = errors.New("harvest: no valid contacts found")

// Runner wires the pipeline over an open mail store. The scan,
// aggregation and export steps run strictly sequentially within one
// worker; per-run state (the signature-role cache, the in-flight record
// list) is created inside Run and discarded when it returns.
type Runner struct {
	store    mailstore.Store
	resolver resolve.Config
	scanCfg  scan.Config
	exporter *export.Exporter
	log      *logging.Logger
}

// New builds a Runner.
func New(store mailstore.Store, resolverCfg resolve.Config, scanCfg scan.Config, exporter *export.Exporter, log *logging.Logger) *Runner {
	return &Runner{
		store:    store,
		resolver: resolverCfg,
		scanCfg:  scanCfg,
		exporter: exporter,
		log:      log,
	}
}

// Result is delivered once per background run.
type Result struct {
	Summary progress.Summary
	Err     error
}

// Start launches the run on a single background worker and returns the
// channel its result is delivered on. The foreground stays free to
// render the progress the sink receives.
func (r *Runner) Start(ctx context.Context, sink progress.Sink) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		summary, err := r.Run(ctx, sink)
		switch {
		case err == nil:
			sink.Done(summary)
		case errors.Is(err, ErrNoContacts):
			// Reported by the caller as a distinct outcome.
		default:
			sink.Fail(err)
		}
		ch <- Result{Summary: summary, Err: err}
	}()
	return ch
}

// Run executes scan, aggregate and export in order and returns the run
// summary. Only backend unavailability, cancellation, a double export
// failure, or the empty-result outcome surface as errors.
func (r *Runner) Run(ctx context.Context, sink progress.Sink) (progress.Summary, error) {
	start := time.Now()
	sink.Progress(5, "Initializing...")

	cache := role.NewCache()
	scanner := scan.New(r.store, resolve.New(r.resolver, r.store.Directory()), role.New(cache), r.log, r.scanCfg)

	sink.Progress(10, "Folders resolved")

	var records []contact.Record
	stats, err := scanner.Scan(ctx, func(rec contact.Record) {
		records = append(records, rec)
	}, sink.Progress)
	if err != nil {
		return progress.Summary{ItemsScanned: stats.Items}, err
	}

	sink.Progress(85, "Processing contacts...")

	summary := progress.Summary{ItemsScanned: stats.Items}
	if len(records) == 0 {
		sink.Progress(100, "No valid contacts found")
		return summary, ErrNoContacts
	}

	canonical := aggregate.Aggregate(records)
	summary.UniqueContacts = len(canonical)

	sink.Progress(95, "Saving export...")

	path, err := r.exporter.Export(canonical, time.Now())
	if err != nil {
		return summary, err
	}
	summary.OutputPath = path

	sink.Progress(100, "Complete!")
	r.log.Info("harvest complete",
		"unique_contacts", summary.UniqueContacts,
		"items_scanned", summary.ItemsScanned,
		"raw_records", len(records),
		"folders_scanned", stats.FoldersScanned,
		"folders_skipped", stats.FoldersSkipped,
		"duration", time.Since(start).String(),
		"path", path,
	)
	return summary, nil
}
