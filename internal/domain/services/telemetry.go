package services

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for graph services.
var (
	tracer = otel.Tracer("genlib.services")
	meter  = otel.Meter("genlib.services")
)

var (
	importDuration       metric.Float64Histogram
	importPersons        metric.Int64Counter
	importRelationships  metric.Int64Counter
	importUnresolved     metric.Int64Counter
	treeBuildDuration    metric.Float64Histogram
	treeNodes            metric.Int64Histogram
	treeAnomalies        metric.Int64Counter
	searchIndexedPersons metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		if importDuration, err = meter.Float64Histogram(
			"genlib_import_duration_seconds",
			metric.WithDescription("Duration of import runs"),
			metric.WithUnit("s"),
		); err != nil {
			metricsErr = err
			return
		}
		if importPersons, err = meter.Int64Counter(
			"genlib_import_persons_created_total",
			metric.WithDescription("Persons created by imports"),
		); err != nil {
			metricsErr = err
			return
		}
		if importRelationships, err = meter.Int64Counter(
			"genlib_import_relationships_created_total",
			metric.WithDescription("Relationships created by imports"),
		); err != nil {
			metricsErr = err
			return
		}
		if importUnresolved, err = meter.Int64Counter(
			"genlib_import_unresolved_references_total",
			metric.WithDescription("References that needed a placeholder person"),
		); err != nil {
			metricsErr = err
			return
		}
		if treeBuildDuration, err = meter.Float64Histogram(
			"genlib_tree_build_duration_seconds",
			metric.WithDescription("Duration of family tree builds"),
			metric.WithUnit("s"),
		); err != nil {
			metricsErr = err
			return
		}
		if treeNodes, err = meter.Int64Histogram(
			"genlib_tree_nodes",
			metric.WithDescription("Number of nodes per family tree"),
		); err != nil {
			metricsErr = err
			return
		}
		if treeAnomalies, err = meter.Int64Counter(
			"genlib_tree_anomalies_total",
			metric.WithDescription("Cycles and generation conflicts found while building trees"),
		); err != nil {
			metricsErr = err
			return
		}
		if searchIndexedPersons, err = meter.Int64Counter(
			"genlib_search_indexed_persons_total",
			metric.WithDescription("Persons written to the similarity index"),
		); err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordImportMetrics(ctx context.Context, duration time.Duration, report *ImportReport, status string) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.Bool("dry_run", report.DryRun),
	)
	importDuration.Record(ctx, duration.Seconds(), attrs)
	if report.DryRun {
		return
	}
	importPersons.Add(ctx, int64(report.PersonsCreated))
	importRelationships.Add(ctx, int64(report.RelationshipsCreated))
	importUnresolved.Add(ctx, int64(report.UnresolvedReferences))
}

func recordTreeMetrics(ctx context.Context, duration time.Duration, nodes, anomalies int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	treeBuildDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
	if success {
		treeNodes.Record(ctx, int64(nodes))
		treeAnomalies.Add(ctx, int64(anomalies))
	}
}

func recordIndexMetrics(ctx context.Context, indexed int) {
	if err := initMetrics(); err != nil {
		return
	}
	searchIndexedPersons.Add(ctx, int64(indexed))
}
