// Package export writes the normalized table to a local directory or S3.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/guregu/null/v6"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"etfkpis/internal/model"
	"etfkpis/internal/table"
)

const (
	s3Scheme   = "s3://"
	dailyDir   = "daily-kpis"
	dateFormat = "2006_01_02"
)

// ObjectPutter is the part of the S3 client used for uploads
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Target describes one export
type Target struct {
	// Location is s3://bucket[/prefix] or a local directory
	Location string
	Parquet  bool
	Date     time.Time
	RunID    string
}

// FileName returns etf_kpis_YYYY_MM_DD with the format extension
func (t Target) FileName() string {
	ext := "csv"
	if t.Parquet {
		ext = "parquet"
	}
	return fmt.Sprintf("etf_kpis_%s.%s", t.Date.Format(dateFormat), ext)
}

// Exporter encodes tables and hands them to a sink
type Exporter struct {
	fs  afero.Fs
	s3  ObjectPutter
	log logrus.FieldLogger
}

// New creates an Exporter. s3 may be nil when only local targets are used.
func New(fs afero.Fs, s3 ObjectPutter, log logrus.FieldLogger) *Exporter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Exporter{fs: fs, s3: s3, log: log}
}

// Write encodes rows and stores them under <location>/daily-kpis/. It returns
// the locations written.
func (e *Exporter) Write(ctx context.Context, rows []model.NormalizedRow, target Target) ([]string, error) {
	var (
		body        []byte
		contentType string
		err         error
	)
	if target.Parquet {
		body, err = EncodeParquet(rows)
		contentType = "application/vnd.apache.parquet"
	} else {
		body, err = EncodeCSV(rows)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode table: %w", err)
	}

	var written string
	if strings.HasPrefix(target.Location, s3Scheme) {
		written, err = e.putS3(ctx, target, body, contentType)
	} else {
		written, err = e.writeLocal(target, body)
	}
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"path":  written,
		"rows":  len(rows),
		"bytes": len(body),
	}).Info("exported ETF KPI table")

	return []string{written}, nil
}

func (e *Exporter) writeLocal(target Target, body []byte) (string, error) {
	dir := path.Join(target.Location, dailyDir)
	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	name := path.Join(dir, target.FileName())
	if err := afero.WriteFile(e.fs, name, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return name, nil
}

func (e *Exporter) putS3(ctx context.Context, target Target, body []byte, contentType string) (string, error) {
	if e.s3 == nil {
		return "", fmt.Errorf("no S3 client configured for %s", target.Location)
	}
	bucket, prefix := SplitS3(target.Location)
	if bucket == "" {
		return "", fmt.Errorf("invalid S3 location %q", target.Location)
	}
	key := path.Join(prefix, dailyDir, target.FileName())

	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}
	if target.RunID != "" {
		input.Metadata = map[string]string{"run-id": target.RunID}
	}
	if _, err := e.s3.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, key, err)
	}
	return s3Scheme + bucket + "/" + key, nil
}

// SplitS3 splits s3://bucket/prefix into bucket and prefix
func SplitS3(location string) (bucket, prefix string) {
	rest := strings.TrimPrefix(location, s3Scheme)
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, strings.Trim(prefix, "/")
}

// EncodeCSV renders rows with a header line. Nulls are empty cells.
func EncodeCSV(rows []model.NormalizedRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(table.Header()); err != nil {
		return nil, err
	}
	record := make([]string, len(table.Schema))
	for _, row := range rows {
		for i, cell := range table.Values(row) {
			record[i] = formatCell(cell)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatCell(cell any) string {
	switch v := cell.(type) {
	case null.String:
		if v.Valid {
			return v.String
		}
	case null.Float:
		if v.Valid {
			return strconv.FormatFloat(v.Float64, 'f', -1, 64)
		}
	case null.Time:
		if v.Valid {
			return v.Time.Format(table.DateLayout)
		}
	}
	return ""
}
