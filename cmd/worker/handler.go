package main

import (
	"context"

	"github.com/Arisex96/bio-mat-new/internal/domain/material"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/messaging/kafka"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/prometheus"
	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// refresher reloads the catalog from its sources into the shared cache.
type refresher interface {
	Refresh(ctx context.Context) (*material.Catalog, error)
}

// catalogWarmer reacts to catalog.imported by reloading the snapshot so the
// API servers find it in Redis instead of hitting the database.
type catalogWarmer struct {
	catalog refresher
	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

func newCatalogWarmer(c refresher, metrics *prometheus.AppMetrics, logger logging.Logger) *catalogWarmer {
	return &catalogWarmer{catalog: c, metrics: metrics, logger: logger}
}

// Handle is a kafka.MessageHandler. Returned errors are retried by the
// consumer and dead-lettered once retries run out.
func (w *catalogWarmer) Handle(ctx context.Context, msg *kafka.Message) error {
	err := w.handle(ctx, msg)
	if w.metrics != nil {
		w.metrics.RecordEvent(msg.Topic, err)
	}
	return err
}

func (w *catalogWarmer) handle(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return err
	}
	if env.EventType != kafka.TopicCatalogImported {
		return errors.New(errors.ErrCodeValidation, "unexpected event type").WithDetail(env.EventType)
	}
	var payload kafka.CatalogImportedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	cat, err := w.catalog.Refresh(ctx)
	if err != nil {
		w.logger.Warn("catalog refresh failed",
			logging.String("event_id", env.EventID),
			logging.String("version", payload.Version),
			logging.Err(err))
		return err
	}

	w.logger.Info("catalog cache warmed",
		logging.String("event_id", env.EventID),
		logging.String("imported_version", payload.Version),
		logging.String("loaded_version", cat.Version()),
		logging.String("source", cat.Source()),
		logging.Int("records", cat.Len()))
	return nil
}
