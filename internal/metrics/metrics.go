package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scan Metrics
	ItemsScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailharvest_items_scanned_total",
		Help: "Total mail items visited during scans",
	}, []string{"folder"})

	RecordsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailharvest_records_emitted_total",
		Help: "Total raw contact records emitted",
	}, []string{"position"})

	CandidatesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailharvest_candidates_dropped_total",
		Help: "Total contact candidates dropped",
	}, []string{"reason"})

	FoldersSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailharvest_folders_skipped_total",
		Help: "Total folders skipped because they could not be opened",
	})

	// Resolution Metrics
	AddressesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailharvest_addresses_resolved_total",
		Help: "Total addresses resolved, by outcome",
	}, []string{"outcome"})

	RolesExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailharvest_roles_extracted_total",
		Help: "Total roles attached to records, by source",
	}, []string{"source"})

	RoleCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailharvest_role_cache_hits_total",
		Help: "Total signature-role cache hits",
	})

	// Export Metrics
	ExportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mailharvest_export_duration_seconds",
		Help:    "Time taken to write the export file",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	ExportFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mailharvest_export_fallbacks_total",
		Help: "Total exports that fell back to the secondary location",
	})

	ContactsExported = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mailharvest_contacts_exported",
		Help: "Unique contacts written by the most recent run",
	})

	// Error Metrics
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailharvest_errors_total",
		Help: "Total errors by component",
	}, []string{"component", "type"})
)

// RecordItem records a visited mail item.
func RecordItem(folder string) {
	ItemsScanned.WithLabelValues(folder).Inc()
}

// RecordEmit records an emitted raw record by position (sender,
// recipient, contact).
func RecordEmit(position string) {
	RecordsEmitted.WithLabelValues(position).Inc()
}

// RecordDrop records a dropped candidate with reason.
func RecordDrop(reason string) {
	CandidatesDropped.WithLabelValues(reason).Inc()
}

// RecordResolution records a resolution outcome (resolved, guessed, failed).
func RecordResolution(outcome string) {
	AddressesResolved.WithLabelValues(outcome).Inc()
}

// RecordRole records a role attachment by source (directory, signature,
// contact_item).
func RecordRole(source string) {
	RolesExtracted.WithLabelValues(source).Inc()
}

// RecordError records an error.
func RecordError(component, errorType string) {
	Errors.WithLabelValues(component, errorType).Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
