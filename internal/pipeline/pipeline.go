// Package pipeline runs the loader, the collector and the normalizer in order.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"etfkpis/internal/model"
	"etfkpis/internal/table"
)

// Loader produces the reference universe
type Loader interface {
	LoadReferenceUniverse(ctx context.Context, cutoff time.Time, maxCount int) ([]model.ReferenceRecord, error)
}

// Collector produces enrichment records for a list of symbols
type Collector interface {
	Collect(ctx context.Context, symbols []string) ([]model.EnrichmentRecord, error)
}

// Pipeline wires a Loader and a Collector into the normalized table
type Pipeline struct {
	loader    Loader
	collector Collector
	log       logrus.FieldLogger
}

// New creates a new Pipeline
func New(loader Loader, collector Collector, log logrus.FieldLogger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		loader:    loader,
		collector: collector,
		log:       log,
	}
}

// WithRunID tags log with a fresh run id and returns both
func WithRunID(log logrus.FieldLogger) (logrus.FieldLogger, string) {
	id := uuid.NewString()
	return log.WithField("run_id", id), id
}

// Run loads the universe, enriches every symbol and normalizes the result.
// The table has one row per loaded symbol. Errors are returned unchanged.
func (p *Pipeline) Run(ctx context.Context, cutoff time.Time, maxCount int) ([]model.NormalizedRow, error) {
	start := time.Now()

	reference, err := p.loader.LoadReferenceUniverse(ctx, cutoff, maxCount)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, len(reference))
	for i, r := range reference {
		symbols[i] = r.Symbol
	}

	enrichment, err := p.collector.Collect(ctx, symbols)
	if err != nil {
		return nil, err
	}

	rows, err := table.Normalize(reference, enrichment)
	if err != nil {
		return nil, err
	}

	p.log.WithFields(logrus.Fields{
		"rows":     len(rows),
		"enriched": len(enrichment),
		"elapsed":  time.Since(start).Round(time.Millisecond).String(),
	}).Info("built ETF KPI table")

	return rows, nil
}
