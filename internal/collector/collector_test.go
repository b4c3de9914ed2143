package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfkpis/internal/fetcher"
	"etfkpis/internal/logger"
	"etfkpis/internal/model"
	"etfkpis/internal/testutil"
)

func TestCollect_SkipsSymbolsWithoutData(t *testing.T) {
	mock := testutil.NewMockFetcher(map[string]fetcher.Payload{
		"AAA": {"previousClose": 10.0, "underlyingSymbol": "AAA"},
		"CCC": {"category": "Bond"},
	})
	c := New(mock, logger.Discard())

	records, stats, err := c.CollectWithStats(context.Background(), []string{"AAA", "BBB", "CCC"})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "AAA", records[0].Symbol)
	assert.Equal(t, "CCC", records[1].Symbol)
	assert.Equal(t, Stats{Requested: 3, Enriched: 2, Missing: 1}, stats)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, mock.Calls, "one sequential lookup per symbol")
}

func TestCollect_EmptyPayloadProducesNoRecord(t *testing.T) {
	source := &testutil.MockSource{Bodies: map[string][]byte{"EMPTY": []byte(`{}`)}}
	c := New(fetcher.NewCachedFetcher(source, nil, nil, logger.Discard()), logger.Discard())

	records, err := c.Collect(context.Background(), []string{"EMPTY"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCollect_ErrorAbortsRun(t *testing.T) {
	netErr := fetcher.NewNetworkError(errors.New("connection refused"))
	mock := &testutil.MockFetcher{
		FetchFunc: func(ctx context.Context, symbol string) (fetcher.Payload, error) {
			if symbol == "BBB" {
				return nil, netErr
			}
			return fetcher.Payload{"bid": 1.0}, nil
		},
	}
	c := New(mock, logger.Discard())

	records, err := c.Collect(context.Background(), []string{"AAA", "BBB", "CCC"})
	assert.Nil(t, records)
	assert.Same(t, netErr, err, "errors must propagate unchanged")
	assert.Equal(t, []string{"AAA", "BBB"}, mock.Calls, "no lookups after the failure")
}

func TestCollect_NoSymbols(t *testing.T) {
	c := New(testutil.NewMockFetcher(nil), logger.Discard())

	records, err := c.Collect(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExtract_MissingFieldsAreNull(t *testing.T) {
	payload := fetcher.Payload{
		"longBusinessSummary":    "Tracks the S&P 500.",
		"previousClose":          412.5,
		"navPrice":               412.4,
		"volume":                 float64(5000000),
		"averageVolume":          float64(4500000),
		"bid":                    412.3,
		"bidSize":                float64(900),
		"askSize":                float64(1100),
		"ask":                    412.6,
		"category":               "Large Blend",
		"beta3Year":              1.0,
		"ytdReturn":              0.15,
		"threeYearAverageReturn": 0.1,
		"fiveYearAverageReturn":  nil,
		"underlyingSymbol":       "SPY",
		"unrelatedField":         "ignored",
	}

	rec := Extract("SPY", payload)

	assert.Equal(t, "SPY", rec.Symbol)
	assert.Equal(t, "SPY", rec.ProviderSymbol)
	assert.Nil(t, rec.Value(model.ColumnTrailingPE))
	assert.Nil(t, rec.Value(model.ColumnFiveYearAvgReturn))
	assert.Equal(t, 412.5, rec.Value(model.ColumnPreviousClose))
	assert.Equal(t, "Large Blend", rec.Value(model.ColumnCategory))
	assert.Len(t, rec.Values, 13)
}

func TestExtract_RequestedSymbolIsJoinKey(t *testing.T) {
	rec := Extract("AAA", fetcher.Payload{"underlyingSymbol": "AAA.X", "bid": 1.0})
	assert.Equal(t, "AAA", rec.Symbol)
	assert.Equal(t, "AAA.X", rec.ProviderSymbol)
}
