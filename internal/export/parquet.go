package export

import (
	"bytes"
	"time"

	"github.com/parquet-go/parquet-go"

	"etfkpis/internal/model"
)

// parquetRow is the on-disk layout. Nil pointers are nulls.
type parquetRow struct {
	Symbol             *string    `parquet:"symbol,optional"`
	Name               *string    `parquet:"name,optional"`
	IPODate            *time.Time `parquet:"ipo_date,optional,timestamp(millisecond)"`
	PreviousClose      *float64   `parquet:"previous_close,optional"`
	NAVPrice           *float64   `parquet:"nav_price,optional"`
	TrailingPE         *float64   `parquet:"trailing_pe,optional"`
	Volume             *float64   `parquet:"volume,optional"`
	AverageVolume      *float64   `parquet:"average_volume,optional"`
	Bid                *float64   `parquet:"bid,optional"`
	BidSize            *float64   `parquet:"bid_size,optional"`
	AskSize            *float64   `parquet:"ask_size,optional"`
	Ask                *float64   `parquet:"ask,optional"`
	Category           *string    `parquet:"category,optional"`
	BetaThreeYear      *float64   `parquet:"beta_three_year,optional"`
	YTDReturn          *float64   `parquet:"ytd_return,optional"`
	ThreeYearAvgReturn *float64   `parquet:"three_year_avg_return,optional"`
	FiveYearAvgReturn  *float64   `parquet:"five_year_avg_return,optional"`
	BusinessSummary    *string    `parquet:"business_summary,optional"`
}

func toParquetRow(r model.NormalizedRow) parquetRow {
	return parquetRow{
		Symbol:             r.Symbol.Ptr(),
		Name:               r.Name.Ptr(),
		IPODate:            r.IPODate.Ptr(),
		PreviousClose:      r.PreviousClose.Ptr(),
		NAVPrice:           r.NAVPrice.Ptr(),
		TrailingPE:         r.TrailingPE.Ptr(),
		Volume:             r.Volume.Ptr(),
		AverageVolume:      r.AverageVolume.Ptr(),
		Bid:                r.Bid.Ptr(),
		BidSize:            r.BidSize.Ptr(),
		AskSize:            r.AskSize.Ptr(),
		Ask:                r.Ask.Ptr(),
		Category:           r.Category.Ptr(),
		BetaThreeYear:      r.BetaThreeYear.Ptr(),
		YTDReturn:          r.YTDReturn.Ptr(),
		ThreeYearAvgReturn: r.ThreeYearAvgReturn.Ptr(),
		FiveYearAvgReturn:  r.FiveYearAvgReturn.Ptr(),
		BusinessSummary:    r.BusinessSummary.Ptr(),
	}
}

// EncodeParquet renders rows as a single parquet file
func EncodeParquet(rows []model.NormalizedRow) ([]byte, error) {
	out := make([]parquetRow, len(rows))
	for i, r := range rows {
		out[i] = toParquetRow(r)
	}

	var buf bytes.Buffer
	if err := parquet.Write(&buf, out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
