package table

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfkpis/internal/fetcher"
	"etfkpis/internal/model"
)

func ref(symbol string) model.ReferenceRecord {
	return model.ReferenceRecord{
		Symbol:  symbol,
		Name:    "Fund " + symbol,
		IPODate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func enrichment(symbol string, values map[model.Column]any) model.EnrichmentRecord {
	return model.EnrichmentRecord{Symbol: symbol, Values: values}
}

func TestNormalize_LeftJoin(t *testing.T) {
	reference := []model.ReferenceRecord{ref("AAA"), ref("BBB"), ref("CCC")}
	enriched := []model.EnrichmentRecord{
		enrichment("CCC", map[model.Column]any{model.ColumnBid: 3.0}),
		enrichment("AAA", map[model.Column]any{model.ColumnBid: 1.0}),
		enrichment("ZZZ", map[model.Column]any{model.ColumnBid: 9.0}),
	}

	rows, err := Normalize(reference, enriched)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "AAA", rows[0].Symbol.String)
	assert.Equal(t, null.FloatFrom(1.0), rows[0].Bid)

	// No enrichment match, still present with null enrichment fields
	assert.Equal(t, "BBB", rows[1].Symbol.String)
	assert.Equal(t, "Fund BBB", rows[1].Name.String)
	assert.True(t, rows[1].IPODate.Valid)
	for i, cell := range Values(rows[1])[3:] {
		assert.True(t, cell.(interface{ IsZero() bool }).IsZero(), "column %s should be null", Schema[i+3].Name)
	}

	assert.Equal(t, null.FloatFrom(3.0), rows[2].Bid)
}

func TestNormalize_OneRowPerReferenceSymbol(t *testing.T) {
	reference := []model.ReferenceRecord{ref("AAA"), ref("BBB")}
	enriched := []model.EnrichmentRecord{
		enrichment("AAA", map[model.Column]any{model.ColumnAsk: 1.0}),
		enrichment("AAA", map[model.Column]any{model.ColumnAsk: 2.0}),
	}

	rows, err := Normalize(reference, enriched)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	seen := map[string]int{}
	for _, r := range rows {
		seen[r.Symbol.String]++
	}
	assert.Equal(t, map[string]int{"AAA": 1, "BBB": 1}, seen)
	assert.Equal(t, null.FloatFrom(1.0), rows[0].Ask)
}

func TestNormalize_MissingTrailingPE(t *testing.T) {
	values := map[model.Column]any{}
	for _, f := range model.EnrichmentFields {
		if f.Column == model.ColumnTrailingPE {
			continue
		}
		values[f.Column] = 1.5
	}
	values[model.ColumnBusinessSummary] = "Summary"
	values[model.ColumnCategory] = "Large Blend"

	rows, err := Normalize([]model.ReferenceRecord{ref("AAA")}, []model.EnrichmentRecord{enrichment("AAA", values)})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.False(t, row.TrailingPE.Valid)
	assert.Equal(t, null.StringFrom("Summary"), row.BusinessSummary)
	assert.Equal(t, null.StringFrom("Large Blend"), row.Category)
	for _, f := range []null.Float{
		row.PreviousClose, row.NAVPrice, row.Volume, row.AverageVolume, row.Bid, row.BidSize,
		row.AskSize, row.Ask, row.BetaThreeYear, row.YTDReturn, row.ThreeYearAvgReturn, row.FiveYearAvgReturn,
	} {
		assert.Equal(t, null.FloatFrom(1.5), f)
	}
}

func TestNormalize_CoercionFailureFailsTable(t *testing.T) {
	reference := []model.ReferenceRecord{ref("AAA"), ref("BBB")}
	enriched := []model.EnrichmentRecord{
		enrichment("AAA", map[model.Column]any{model.ColumnBid: 1.0}),
		enrichment("BBB", map[model.Column]any{model.ColumnVolume: "lots"}),
	}

	rows, err := Normalize(reference, enriched)
	assert.Nil(t, rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, fetcher.ErrSchema)
	assert.Contains(t, err.Error(), `"volume"`)
	assert.Contains(t, err.Error(), `"BBB"`)
}

func TestNormalize_BlankNumberFailsTable(t *testing.T) {
	enriched := []model.EnrichmentRecord{
		enrichment("AAA", map[model.Column]any{model.ColumnNAVPrice: ""}),
	}

	rows, err := Normalize([]model.ReferenceRecord{ref("AAA")}, enriched)
	assert.Nil(t, rows)
	assert.ErrorIs(t, err, fetcher.ErrSchema)
	assert.Contains(t, err.Error(), `"nav_price"`)
}

func TestNormalize_CompositeTextFails(t *testing.T) {
	enriched := []model.EnrichmentRecord{
		enrichment("AAA", map[model.Column]any{model.ColumnCategory: map[string]any{"fmt": "x"}}),
	}

	_, err := Normalize([]model.ReferenceRecord{ref("AAA")}, enriched)
	assert.ErrorIs(t, err, fetcher.ErrSchema)
}

func TestNormalize_Empty(t *testing.T) {
	rows, err := Normalize(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    null.Float
		wantErr bool
	}{
		{"nil", nil, null.Float{}, false},
		{"float64", 1.25, null.FloatFrom(1.25), false},
		{"float32", float32(0.5), null.FloatFrom(0.5), false},
		{"int", 42, null.FloatFrom(42), false},
		{"int64", int64(-7), null.FloatFrom(-7), false},
		{"uint32", uint32(9), null.FloatFrom(9), false},
		{"json number", json.Number("3.5"), null.FloatFrom(3.5), false},
		{"numeric string", " 12.5 ", null.FloatFrom(12.5), false},
		{"empty string", "", null.Float{}, true},
		{"blank string", "  ", null.Float{}, true},
		{"word", "n/a", null.Float{}, true},
		{"bool", true, null.Float{}, true},
		{"map", map[string]any{}, null.Float{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToFloat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToText(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    null.String
		wantErr bool
	}{
		{"nil", nil, null.String{}, false},
		{"string", "Bond", null.StringFrom("Bond"), false},
		{"empty string stays valid", "", null.StringFrom(""), false},
		{"float", 2.5, null.StringFrom("2.5"), false},
		{"int", 7, null.StringFrom("7"), false},
		{"slice", []any{"a"}, null.String{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToText(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToDate(t *testing.T) {
	d := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)

	got, err := ToDate(d)
	require.NoError(t, err)
	assert.Equal(t, null.TimeFrom(d), got)

	got, err = ToDate("2023-06-15")
	require.NoError(t, err)
	assert.True(t, got.Time.Equal(d))

	got, err = ToDate(time.Time{})
	require.NoError(t, err)
	assert.False(t, got.Valid)

	_, err = ToDate("15/06/2023")
	assert.Error(t, err)

	_, err = ToDate(20230615)
	assert.Error(t, err)
}

func TestSchemaMatchesValues(t *testing.T) {
	row := model.NormalizedRow{}
	assert.Len(t, Values(row), len(Schema))
	assert.Equal(t, "symbol", Header()[0])
	assert.Equal(t, "business_summary", Header()[len(Schema)-1])

	for i, cell := range Values(row) {
		switch Schema[i].Kind {
		case KindText:
			assert.IsType(t, null.String{}, cell, Schema[i].Name)
		case KindFloat:
			assert.IsType(t, null.Float{}, cell, Schema[i].Name)
		case KindDate:
			assert.IsType(t, null.Time{}, cell, Schema[i].Name)
		}
	}
}
