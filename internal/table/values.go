package table

import (
	"etfkpis/internal/model"
)

// Values returns the cells of a row in Schema order. Each cell is a
// null.String, null.Float or null.Time.
func Values(row model.NormalizedRow) []any {
	return []any{
		row.Symbol,
		row.Name,
		row.IPODate,
		row.PreviousClose,
		row.NAVPrice,
		row.TrailingPE,
		row.Volume,
		row.AverageVolume,
		row.Bid,
		row.BidSize,
		row.AskSize,
		row.Ask,
		row.Category,
		row.BetaThreeYear,
		row.YTDReturn,
		row.ThreeYearAvgReturn,
		row.FiveYearAvgReturn,
		row.BusinessSummary,
	}
}

// Header returns the column names in Schema order
func Header() []string {
	out := make([]string, len(Schema))
	for i, c := range Schema {
		out[i] = c.Name
	}
	return out
}
