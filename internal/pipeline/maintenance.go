package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/model"
	"jobpulse/ingest-service/internal/store"
)

// Health is the coarse state the maintenance assessment reports.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthWarning   Health = "warning"
	HealthUnhealthy Health = "unhealthy"
)

// Failure-rate bands and data-freshness window of the health assessment.
const (
	unhealthyFailureRate = 0.20
	warningFailureRate   = 0.10
	staleDataAfter       = 48 * time.Hour
	statsWindow          = 24 * time.Hour
)

// MaintenanceReport is what one maintenance pass found and did.
type MaintenanceReport struct {
	Health         Health               `json:"health"`
	FailureRate    float64              `json:"failure_rate"`
	Stats          store.OperationStats `json:"stats"`
	LinksDeleted   int64                `json:"links_deleted"`
	LastCollection *time.Time           `json:"last_collection,omitempty"`
	Notes          []string             `json:"notes,omitempty"`
}

// RunMaintenance sweeps stale duplication links, aggregates recent
// operation statistics and assesses pipeline health. It runs off the hot
// path, typically from the weekly schedule.
func (o *Orchestrator) RunMaintenance(ctx context.Context) (*MaintenanceReport, error) {
	opLog := &model.OperationLog{
		ID:            uuid.NewString(),
		OperationType: model.OperationMaintenance,
		Status:        model.StatusProcessing,
		InputSummary:  map[string]any{"cleanup_days": o.cfg.CleanupDays},
		StartedAt:     o.now().UTC(),
	}
	if err := o.store.InsertOperationLog(ctx, opLog); err != nil {
		return nil, fmt.Errorf("start maintenance log: %w", err)
	}

	deleted, err := o.loader.CleanupOldDuplicates(ctx, o.cfg.CleanupDays)
	if err != nil {
		opLog.ErrorDetail = err.Error()
		opLog.Finish(model.StatusFailed, o.now().UTC())
		if cerr := o.store.CompleteOperationLog(ctx, opLog); cerr != nil {
			o.log.Error("failed to complete maintenance log", zap.String("log_id", opLog.ID), zap.Error(cerr))
		}
		return nil, fmt.Errorf("duplicate cleanup: %w", err)
	}
	report, err := o.CheckHealth(ctx)
	if err != nil {
		opLog.ErrorDetail = err.Error()
		opLog.Finish(model.StatusFailed, o.now().UTC())
		if cerr := o.store.CompleteOperationLog(ctx, opLog); cerr != nil {
			o.log.Error("failed to complete maintenance log", zap.String("log_id", opLog.ID), zap.Error(cerr))
		}
		return nil, err
	}
	report.LinksDeleted = deleted

	opLog.OutputSummary = map[string]any{
		"links_deleted": deleted,
		"health":        string(report.Health),
		"notes":         report.Notes,
	}
	opLog.Metrics = map[string]any{
		"failure_rate":      report.FailureRate,
		"operations_window": report.Stats.Total,
	}
	opLog.Finish(model.StatusCompleted, o.now().UTC())
	if err := o.store.CompleteOperationLog(ctx, opLog); err != nil {
		o.log.Error("failed to complete maintenance log", zap.String("log_id", opLog.ID), zap.Error(err))
	}

	o.log.Info("maintenance pass finished",
		zap.String("health", string(report.Health)),
		zap.Float64("failure_rate", report.FailureRate),
		zap.Int64("links_deleted", deleted),
	)
	return report, nil
}

// CheckHealth aggregates recent operation statistics and assesses pipeline
// health without mutating anything, so the ops endpoint can call it freely.
func (o *Orchestrator) CheckHealth(ctx context.Context) (*MaintenanceReport, error) {
	stats, err := o.store.RecentOperationStats(ctx, o.now().UTC().Add(-statsWindow))
	if err != nil {
		return nil, fmt.Errorf("aggregate statistics: %w", err)
	}
	report := &MaintenanceReport{
		Stats:       stats,
		FailureRate: stats.FailureRate(),
	}
	o.assessHealth(ctx, report)
	return report, nil
}

// assessHealth fills the report's health verdict and notes.
func (o *Orchestrator) assessHealth(ctx context.Context, report *MaintenanceReport) {
	report.Health = HealthHealthy

	switch {
	case report.FailureRate > unhealthyFailureRate:
		report.Health = HealthUnhealthy
		report.Notes = append(report.Notes, fmt.Sprintf("failure rate %.0f%% exceeds %.0f%%",
			report.FailureRate*100, unhealthyFailureRate*100))
	case report.FailureRate >= warningFailureRate:
		report.Health = HealthWarning
		report.Notes = append(report.Notes, fmt.Sprintf("elevated failure rate %.0f%%", report.FailureRate*100))
	}

	last, err := o.store.LatestCollectionTime(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if report.Health == HealthHealthy {
			report.Health = HealthWarning
		}
		report.Notes = append(report.Notes, "no collections on record")
	case err != nil:
		o.log.Warn("latest collection time unavailable", zap.Error(err))
	default:
		report.LastCollection = &last
		if o.now().UTC().Sub(last) > staleDataAfter {
			if report.Health == HealthHealthy {
				report.Health = HealthWarning
			}
			report.Notes = append(report.Notes, fmt.Sprintf("no fresh data since %s", last.Format(time.RFC3339)))
		}
	}
}
