package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/guregu/null/v6"
	"github.com/parquet-go/parquet-go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfkpis/internal/logger"
	"etfkpis/internal/model"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

var runDate = time.Date(2024, 7, 4, 9, 30, 0, 0, time.UTC)

func sampleRows() []model.NormalizedRow {
	return []model.NormalizedRow{
		{
			Symbol:          null.StringFrom("AAA"),
			Name:            null.StringFrom("Alpha, Broad Market ETF"),
			IPODate:         null.TimeFrom(time.Date(2023, 2, 14, 0, 0, 0, 0, time.UTC)),
			PreviousClose:   null.FloatFrom(41.25),
			Volume:          null.FloatFrom(120000),
			Category:        null.StringFrom("Large Blend"),
			BusinessSummary: null.StringFrom("Tracks the index."),
		},
		{
			Symbol:  null.StringFrom("BBB"),
			Name:    null.StringFrom("Beta Bond ETF"),
			IPODate: null.TimeFrom(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)),
		},
	}
}

func TestTarget_FileName(t *testing.T) {
	assert.Equal(t, "etf_kpis_2024_07_04.csv", Target{Date: runDate}.FileName())
	assert.Equal(t, "etf_kpis_2024_07_04.parquet", Target{Date: runDate, Parquet: true}.FileName())
}

func TestSplitS3(t *testing.T) {
	tests := []struct {
		in, bucket, prefix string
	}{
		{"s3://etf-kpis", "etf-kpis", ""},
		{"s3://etf-kpis/", "etf-kpis", ""},
		{"s3://etf-kpis/team/etfs/", "etf-kpis", "team/etfs"},
	}
	for _, tt := range tests {
		bucket, prefix := SplitS3(tt.in)
		assert.Equal(t, tt.bucket, bucket, tt.in)
		assert.Equal(t, tt.prefix, prefix, tt.in)
	}
}

func TestEncodeCSV(t *testing.T) {
	body, err := EncodeCSV(sampleRows())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "symbol,name,ipo_date,previous_close,nav_price,trailing_pe,"))
	assert.Equal(t,
		`AAA,"Alpha, Broad Market ETF",2023-02-14,41.25,,,120000,,,,,,Large Blend,,,,,Tracks the index.`,
		lines[1])
	assert.Equal(t, "BBB,Beta Bond ETF,2023-03-01,,,,,,,,,,,,,,,", lines[2])
}

func TestEncodeCSV_NoRows(t *testing.T) {
	body, err := EncodeCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(body), "\n"))
}

func TestEncodeParquet_KeepsNulls(t *testing.T) {
	body, err := EncodeParquet(sampleRows())
	require.NoError(t, err)

	got, err := parquet.Read[parquetRow](bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "AAA", *got[0].Symbol)
	assert.Equal(t, 41.25, *got[0].PreviousClose)
	assert.True(t, got[0].IPODate.Equal(time.Date(2023, 2, 14, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, got[0].TrailingPE)
	assert.Nil(t, got[1].PreviousClose)
	assert.Nil(t, got[1].Category)
}

func TestWrite_Local(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := New(fs, nil, logger.Discard())

	paths, err := e.Write(context.Background(), sampleRows(), Target{Location: "/data", Date: runDate})
	require.NoError(t, err)
	require.Equal(t, []string{"/data/daily-kpis/etf_kpis_2024_07_04.csv"}, paths)

	data, err := afero.ReadFile(fs, paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Beta Bond ETF")
}

func TestWrite_S3(t *testing.T) {
	putter := &fakePutter{}
	e := New(afero.NewMemMapFs(), putter, logger.Discard())

	target := Target{Location: "s3://etf-kpis/prod", Parquet: true, Date: runDate, RunID: "run-1"}
	paths, err := e.Write(context.Background(), sampleRows(), target)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://etf-kpis/prod/daily-kpis/etf_kpis_2024_07_04.parquet"}, paths)

	require.Len(t, putter.inputs, 1)
	in := putter.inputs[0]
	assert.Equal(t, "etf-kpis", aws.ToString(in.Bucket))
	assert.Equal(t, "prod/daily-kpis/etf_kpis_2024_07_04.parquet", aws.ToString(in.Key))
	assert.Equal(t, "application/vnd.apache.parquet", aws.ToString(in.ContentType))
	assert.Equal(t, "run-1", in.Metadata["run-id"])
	assert.Equal(t, []byte("PAR1"), putter.bodies[0][:4])
}

func TestWrite_S3Errors(t *testing.T) {
	_, err := New(nil, nil, nil).Write(context.Background(), nil, Target{Location: "s3://bucket", Date: runDate})
	assert.Error(t, err, "no client")

	_, err = New(nil, &fakePutter{}, nil).Write(context.Background(), nil, Target{Location: "s3://", Date: runDate})
	assert.Error(t, err, "no bucket")

	denied := errors.New("access denied")
	_, err = New(nil, &fakePutter{err: denied}, nil).Write(context.Background(), nil, Target{Location: "s3://bucket", Date: runDate})
	assert.ErrorIs(t, err, denied)
}
