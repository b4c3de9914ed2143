// Package table merges reference and enrichment records into the typed output table.
package table

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"etfkpis/internal/fetcher"
	"etfkpis/internal/model"
)

// Kind is the semantic type of an output column
type Kind string

const (
	KindText  Kind = "text"
	KindFloat Kind = "float64"
	KindDate  Kind = "date"
)

// DateLayout is the text form of date columns
const DateLayout = "2006-01-02"

// ColumnSpec declares one output column
type ColumnSpec struct {
	Name string
	Kind Kind
}

// Schema is the output column order and type map. It covers every column.
var Schema = []ColumnSpec{
	{"symbol", KindText},
	{"name", KindText},
	{"ipo_date", KindDate},
	{string(model.ColumnPreviousClose), KindFloat},
	{string(model.ColumnNAVPrice), KindFloat},
	{string(model.ColumnTrailingPE), KindFloat},
	{string(model.ColumnVolume), KindFloat},
	{string(model.ColumnAverageVolume), KindFloat},
	{string(model.ColumnBid), KindFloat},
	{string(model.ColumnBidSize), KindFloat},
	{string(model.ColumnAskSize), KindFloat},
	{string(model.ColumnAsk), KindFloat},
	{string(model.ColumnCategory), KindText},
	{string(model.ColumnBetaThreeYear), KindFloat},
	{string(model.ColumnYTDReturn), KindFloat},
	{string(model.ColumnThreeYearAvgReturn), KindFloat},
	{string(model.ColumnFiveYearAvgReturn), KindFloat},
	{string(model.ColumnBusinessSummary), KindText},
}

// Normalize left-joins enrichment onto reference by symbol and coerces every
// value to its schema type. Every reference record yields exactly one row, in
// reference order. Any coercion failure fails the whole table.
func Normalize(reference []model.ReferenceRecord, enrichment []model.EnrichmentRecord) ([]model.NormalizedRow, error) {
	bySymbol := make(map[string]model.EnrichmentRecord, len(enrichment))
	for _, e := range enrichment {
		// First record per symbol wins so a duplicate never duplicates a row
		if _, ok := bySymbol[e.Symbol]; !ok {
			bySymbol[e.Symbol] = e
		}
	}

	rows := make([]model.NormalizedRow, 0, len(reference))
	for _, ref := range reference {
		row, err := normalizeRow(ref, bySymbol[ref.Symbol])
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizeRow(ref model.ReferenceRecord, e model.EnrichmentRecord) (model.NormalizedRow, error) {
	ipo, err := ToDate(ref.IPODate)
	if err != nil {
		return model.NormalizedRow{}, fetcher.NewSchemaError(ref.Symbol, "ipo_date", err)
	}
	row := model.NormalizedRow{
		Symbol:  null.StringFrom(ref.Symbol),
		Name:    null.StringFrom(ref.Name),
		IPODate: ipo,
	}

	text := func(c model.Column) null.String {
		if err != nil {
			return null.String{}
		}
		var v null.String
		v, err = ToText(e.Value(c))
		if err != nil {
			err = fetcher.NewSchemaError(ref.Symbol, string(c), err)
		}
		return v
	}
	float := func(c model.Column) null.Float {
		if err != nil {
			return null.Float{}
		}
		var v null.Float
		v, err = ToFloat(e.Value(c))
		if err != nil {
			err = fetcher.NewSchemaError(ref.Symbol, string(c), err)
		}
		return v
	}

	row.BusinessSummary = text(model.ColumnBusinessSummary)
	row.PreviousClose = float(model.ColumnPreviousClose)
	row.NAVPrice = float(model.ColumnNAVPrice)
	row.TrailingPE = float(model.ColumnTrailingPE)
	row.Volume = float(model.ColumnVolume)
	row.AverageVolume = float(model.ColumnAverageVolume)
	row.Bid = float(model.ColumnBid)
	row.BidSize = float(model.ColumnBidSize)
	row.AskSize = float(model.ColumnAskSize)
	row.Ask = float(model.ColumnAsk)
	row.Category = text(model.ColumnCategory)
	row.BetaThreeYear = float(model.ColumnBetaThreeYear)
	row.YTDReturn = float(model.ColumnYTDReturn)
	row.ThreeYearAvgReturn = float(model.ColumnThreeYearAvgReturn)
	row.FiveYearAvgReturn = float(model.ColumnFiveYearAvgReturn)

	if err != nil {
		return model.NormalizedRow{}, err
	}
	return row, nil
}

// ToFloat coerces a raw value to a nullable float64. nil is null. Numbers of
// any width, json.Number and numeric strings are accepted; anything else,
// including a blank string, fails.
func ToFloat(v any) (null.Float, error) {
	switch x := v.(type) {
	case nil:
		return null.Float{}, nil
	case float64:
		return null.FloatFrom(x), nil
	case float32:
		return null.FloatFrom(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return null.Float{}, err
		}
		return null.FloatFrom(f), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return null.Float{}, fmt.Errorf("%q is not a number", x)
		}
		return null.FloatFrom(f), nil
	case bool:
		return null.Float{}, fmt.Errorf("boolean %v is not a number", x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return null.FloatFrom(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return null.FloatFrom(float64(rv.Uint())), nil
	}
	return null.Float{}, fmt.Errorf("unsupported type %T", v)
}

// ToText coerces a raw value to nullable text. Strings pass through and numbers
// are formatted; composite values fail.
func ToText(v any) (null.String, error) {
	switch x := v.(type) {
	case nil:
		return null.String{}, nil
	case string:
		return null.StringFrom(x), nil
	case json.Number:
		return null.StringFrom(x.String()), nil
	case float64:
		if math.IsNaN(x) {
			return null.String{}, nil
		}
		return null.StringFrom(strconv.FormatFloat(x, 'f', -1, 64)), nil
	case bool:
		return null.StringFrom(strconv.FormatBool(x)), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return null.StringFrom(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return null.StringFrom(strconv.FormatUint(rv.Uint(), 10)), nil
	}
	return null.String{}, fmt.Errorf("unsupported type %T", v)
}

// ToDate coerces a raw value to a nullable date. time.Time and YYYY-MM-DD
// strings are accepted.
func ToDate(v any) (null.Time, error) {
	switch x := v.(type) {
	case nil:
		return null.Time{}, nil
	case time.Time:
		return null.NewTime(x, !x.IsZero()), nil
	case string:
		if strings.TrimSpace(x) == "" {
			return null.Time{}, nil
		}
		t, err := time.Parse(DateLayout, x)
		if err != nil {
			return null.Time{}, fmt.Errorf("%q is not a date", x)
		}
		return null.TimeFrom(t), nil
	}
	return null.Time{}, fmt.Errorf("unsupported type %T", v)
}
