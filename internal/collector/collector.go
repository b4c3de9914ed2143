// Package collector drives one enrichment lookup per symbol.
package collector

import (
	"context"

	"github.com/sirupsen/logrus"

	"etfkpis/internal/fetcher"
	"etfkpis/internal/model"
)

// providerSymbolKey is the payload key holding the provider's own symbol
const providerSymbolKey = "underlyingSymbol"

// Stats summarizes one collection run
type Stats struct {
	Requested int
	Enriched  int
	Missing   int
}

// Collector issues enrichment lookups sequentially. The fetcher's rate limiter
// governs throughput, so there is no fan-out here.
type Collector struct {
	fetcher fetcher.Fetcher
	log     logrus.FieldLogger
}

// New creates a new Collector
func New(f fetcher.Fetcher, log logrus.FieldLogger) *Collector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Collector{
		fetcher: f,
		log:     log,
	}
}

// Collect fetches every symbol in order. Symbols without data produce no record.
// The first fetch error aborts the run and is returned unchanged.
func (c *Collector) Collect(ctx context.Context, symbols []string) ([]model.EnrichmentRecord, error) {
	records, _, err := c.CollectWithStats(ctx, symbols)
	return records, err
}

// CollectWithStats is Collect that also reports aggregate counts
func (c *Collector) CollectWithStats(ctx context.Context, symbols []string) ([]model.EnrichmentRecord, Stats, error) {
	stats := Stats{Requested: len(symbols)}
	records := make([]model.EnrichmentRecord, 0, len(symbols))

	for _, symbol := range symbols {
		payload, err := c.fetcher.Fetch(ctx, symbol)
		if err != nil {
			return nil, stats, err
		}
		if payload == nil {
			stats.Missing++
			continue
		}

		records = append(records, Extract(symbol, payload))
		stats.Enriched++
	}

	c.log.WithFields(logrus.Fields{
		"requested": stats.Requested,
		"enriched":  stats.Enriched,
		"missing":   stats.Missing,
	}).Info("completed enrichment lookups")

	return records, stats, nil
}

// Extract picks the fixed enrichment field set out of a payload. Absent keys
// and explicit nulls are left out of Values, which reads as null.
func Extract(symbol string, payload fetcher.Payload) model.EnrichmentRecord {
	rec := model.EnrichmentRecord{
		Symbol: symbol,
		Values: make(map[model.Column]any, len(model.EnrichmentFields)),
	}

	if s, ok := payload[providerSymbolKey].(string); ok {
		rec.ProviderSymbol = s
	}

	for _, field := range model.EnrichmentFields {
		v, ok := payload[field.ProviderKey]
		if !ok || v == nil {
			continue
		}
		rec.Values[field.Column] = v
	}

	return rec
}
