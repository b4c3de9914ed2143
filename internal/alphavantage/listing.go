package alphavantage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"resty.dev/v3"

	"etfkpis/internal/fetcher"
	"etfkpis/internal/model"
	"etfkpis/internal/ratelimit"
)

// DateLayout is the date format used by the listing CSV
const DateLayout = "2006-01-02"

// NoCap disables sampling in LoadReferenceUniverse
const NoCap = -1

// requiredColumns must be present in the listing CSV header
var requiredColumns = []string{"symbol", "name", "assetType", "ipoDate", "exchange"}

// Listing is one row of the LISTING_STATUS CSV
type Listing struct {
	Symbol    string
	Name      string
	Exchange  string
	AssetType string
	IPODate   string
}

// ListingClient loads the active listing from AlphaVantage
type ListingClient struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
	rng     *rand.Rand
	log     logrus.FieldLogger
}

// Option configures a ListingClient
type Option func(*ListingClient)

// WithLimiter sets the rate limiter registry. Defaults to ratelimit.Default().
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *ListingClient) { c.limiter = l }
}

// WithRand sets the random source used for sampling
func WithRand(r *rand.Rand) Option {
	return func(c *ListingClient) { c.rng = r }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *ListingClient) { c.log = log }
}

// WithHTTPClient replaces the default retrying HTTP client
func WithHTTPClient(client *resty.Client) Option {
	return func(c *ListingClient) { c.client = client }
}

// NewListingClient creates a new listing client
func NewListingClient(apiKey, baseURL string, opts ...Option) *ListingClient {
	c := &ListingClient{
		apiKey:  apiKey,
		limiter: ratelimit.Default(),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = fetcher.NewHTTPClient(baseURL, fetcher.ClientOptions{
			RetryCount: fetcher.DefaultRetryCount,
			Accept:     "text/csv",
			Log:        c.log,
		})
	}
	return c
}

// FetchListing retrieves every active listing
func (c *ListingClient) FetchListing(ctx context.Context) ([]Listing, error) {
	if err := c.limiter.Wait(ctx, ratelimit.APIAlphaVantage); err != nil {
		return nil, fetcher.NewDataSourceError("listing request not admitted", err)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apikey":   c.apiKey,
			"function": "LISTING_STATUS",
			"state":    "active",
		}).
		Get("")

	if err != nil {
		return nil, fetcher.NewDataSourceError("failed to fetch listing", fetcher.ClassifyTransportError(err))
	}

	if !resp.IsSuccess() {
		return nil, fetcher.NewDataSourceError("failed to fetch listing", fetcher.ClassifyHTTPError(resp.StatusCode()))
	}

	return ParseListing(strings.NewReader(resp.String()))
}

// LoadReferenceUniverse returns the ETFs listed on NASDAQ or NYSE after cutoff.
// When more than maxCount remain, a uniform random sample of maxCount is returned.
// A maxCount of zero yields no records; a negative one (NoCap) disables the cap.
func (c *ListingClient) LoadReferenceUniverse(ctx context.Context, cutoff time.Time, maxCount int) ([]model.ReferenceRecord, error) {
	listings, err := c.FetchListing(ctx)
	if err != nil {
		return nil, err
	}

	records, err := FilterETFs(listings, cutoff)
	if err != nil {
		return nil, err
	}
	filtered := len(records)
	records = Sample(records, maxCount, c.rng)

	c.log.WithFields(logrus.Fields{
		"listed":   len(listings),
		"filtered": filtered,
		"selected": len(records),
		"ipo_date": cutoff.Format(DateLayout),
	}).Info("loaded active ETFs on NASDAQ and NYSE")

	return records, nil
}

// ParseListing reads the LISTING_STATUS CSV. A body that is not CSV with the
// required columns is a data source error.
func ParseListing(r io.Reader) ([]Listing, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fetcher.NewDataSourceError("empty listing response", nil)
	}
	if err != nil {
		return nil, fetcher.NewDataSourceError("listing response is not CSV", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fetcher.NewDataSourceError(
			fmt.Sprintf("listing response is missing columns: %s", strings.Join(missing, ", ")), nil)
	}

	var listings []Listing
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fetcher.NewDataSourceError("malformed listing row", err)
		}
		listings = append(listings, Listing{
			Symbol:    record[idx["symbol"]],
			Name:      record[idx["name"]],
			Exchange:  record[idx["exchange"]],
			AssetType: record[idx["assetType"]],
			IPODate:   record[idx["ipoDate"]],
		})
	}

	return listings, nil
}

// IsTargetExchange reports whether an exchange is NASDAQ or any NYSE venue
func IsTargetExchange(exchange string) bool {
	return exchange == "NASDAQ" || strings.Contains(exchange, "NYSE")
}

// FilterETFs keeps ETFs on target exchanges whose IPO date is strictly after cutoff
func FilterETFs(listings []Listing, cutoff time.Time) ([]model.ReferenceRecord, error) {
	var out []model.ReferenceRecord
	for _, l := range listings {
		if l.AssetType != "ETF" || !IsTargetExchange(l.Exchange) {
			continue
		}

		ipo, err := time.Parse(DateLayout, l.IPODate)
		if err != nil {
			return nil, fetcher.NewDataSourceError(fmt.Sprintf("invalid ipoDate for %s", l.Symbol), err)
		}
		if !ipo.After(cutoff) {
			continue
		}

		out = append(out, model.ReferenceRecord{
			Symbol:  l.Symbol,
			Name:    l.Name,
			IPODate: ipo,
		})
	}
	return out, nil
}

// Sample returns exactly n records drawn uniformly without replacement when
// len(records) > n, otherwise records unchanged. A negative n disables sampling.
func Sample(records []model.ReferenceRecord, n int, rng *rand.Rand) []model.ReferenceRecord {
	if n < 0 || len(records) <= n {
		return records
	}

	pool := make([]model.ReferenceRecord, len(records))
	copy(pool, records)

	// Partial Fisher-Yates, the first n slots end up as the sample
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
