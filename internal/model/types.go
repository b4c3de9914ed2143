package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// ReferenceRecord is one listed ETF from the reference provider.
type ReferenceRecord struct {
	Symbol  string
	Name    string
	IPODate time.Time
}

// Column names an enrichment column of the normalized table.
type Column string

const (
	ColumnBusinessSummary    Column = "business_summary"
	ColumnPreviousClose      Column = "previous_close"
	ColumnNAVPrice           Column = "nav_price"
	ColumnTrailingPE         Column = "trailing_pe"
	ColumnVolume             Column = "volume"
	ColumnAverageVolume      Column = "average_volume"
	ColumnBid                Column = "bid"
	ColumnBidSize            Column = "bid_size"
	ColumnAskSize            Column = "ask_size"
	ColumnAsk                Column = "ask"
	ColumnCategory           Column = "category"
	ColumnBetaThreeYear      Column = "beta_three_year"
	ColumnYTDReturn          Column = "ytd_return"
	ColumnThreeYearAvgReturn Column = "three_year_avg_return"
	ColumnFiveYearAvgReturn  Column = "five_year_avg_return"
)

// EnrichmentField maps a table column to the provider payload key it is read from.
type EnrichmentField struct {
	Column      Column
	ProviderKey string
}

// EnrichmentFields is the fixed set of fields extracted from every enrichment payload.
var EnrichmentFields = []EnrichmentField{
	{ColumnBusinessSummary, "longBusinessSummary"},
	{ColumnPreviousClose, "previousClose"},
	{ColumnNAVPrice, "navPrice"},
	{ColumnTrailingPE, "trailingPE"},
	{ColumnVolume, "volume"},
	{ColumnAverageVolume, "averageVolume"},
	{ColumnBid, "bid"},
	{ColumnBidSize, "bidSize"},
	{ColumnAskSize, "askSize"},
	{ColumnAsk, "ask"},
	{ColumnCategory, "category"},
	{ColumnBetaThreeYear, "beta3Year"},
	{ColumnYTDReturn, "ytdReturn"},
	{ColumnThreeYearAvgReturn, "threeYearAverageReturn"},
	{ColumnFiveYearAvgReturn, "fiveYearAverageReturn"},
}

// EnrichmentRecord holds the raw, untyped values extracted for one symbol.
// A column missing from Values is null.
type EnrichmentRecord struct {
	// Symbol is the symbol that was requested and is the join key.
	Symbol string

	// ProviderSymbol is the provider's own symbol field, if it sent one.
	ProviderSymbol string

	Values map[Column]any
}

// Value returns the raw value for a column, or nil when the column is null.
func (r EnrichmentRecord) Value(c Column) any {
	if r.Values == nil {
		return nil
	}
	return r.Values[c]
}

// NormalizedRow is one fully typed row of the output table.
type NormalizedRow struct {
	Symbol  null.String
	Name    null.String
	IPODate null.Time

	BusinessSummary    null.String
	PreviousClose      null.Float
	NAVPrice           null.Float
	TrailingPE         null.Float
	Volume             null.Float
	AverageVolume      null.Float
	Bid                null.Float
	BidSize            null.Float
	AskSize            null.Float
	Ask                null.Float
	Category           null.String
	BetaThreeYear      null.Float
	YTDReturn          null.Float
	ThreeYearAvgReturn null.Float
	FiveYearAvgReturn  null.Float
}
