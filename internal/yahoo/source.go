package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"resty.dev/v3"

	"etfkpis/internal/fetcher"
)

const (
	// DefaultBaseURL serves the quote summary endpoint
	DefaultBaseURL = "https://query2.finance.yahoo.com"
	// DefaultCookieURL hands out the session cookie the crumb is bound to
	DefaultCookieURL = "https://fc.yahoo.com"
	// DefaultCrumbURL returns the crumb for the current cookie
	DefaultCrumbURL = "https://query2.finance.yahoo.com/v1/test/getcrumb"

	quoteSummaryPath = "/v10/finance/quoteSummary/{symbol}"
	userAgent        = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// DefaultModules are the quote summary modules requested for every symbol.
// Later modules override earlier ones when a field appears twice.
var DefaultModules = []string{
	"assetProfile",
	"summaryProfile",
	"quoteType",
	"price",
	"summaryDetail",
	"fundProfile",
	"defaultKeyStatistics",
}

// QuoteSummaryResponse represents the Yahoo quote summary envelope
type QuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []map[string]json.RawMessage `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Source fetches quote summaries from Yahoo Finance. It implements fetcher.Source.
type Source struct {
	client    *resty.Client
	cookieURL string
	crumbURL  string
	modules   []string
	log       logrus.FieldLogger

	mu    sync.Mutex
	crumb string
}

var _ fetcher.Source = (*Source)(nil)

// Config configures a Source
type Config struct {
	BaseURL string
	// CookieURL and CrumbURL drive the session handshake. An empty CrumbURL
	// disables it.
	CookieURL string
	CrumbURL  string
	Modules   []string
	Timeout   time.Duration
	Log       logrus.FieldLogger
}

// NewSource creates a new quote summary source. The client never retries:
// transport failures are reported to the caller as network errors.
func NewSource(cfg Config) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if len(cfg.Modules) == 0 {
		cfg.Modules = DefaultModules
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	client := fetcher.NewHTTPClient(cfg.BaseURL, fetcher.ClientOptions{
		Timeout: cfg.Timeout,
		Log:     cfg.Log,
	}).SetHeader("User-Agent", userAgent)

	// cookiejar.New only fails on a bad PublicSuffixList, nil is always fine
	jar, _ := cookiejar.New(nil)
	client.SetCookieJar(jar)

	return &Source{
		client:    client,
		cookieURL: cfg.CookieURL,
		crumbURL:  cfg.CrumbURL,
		modules:   cfg.Modules,
		log:       cfg.Log,
	}
}

// Signature implements fetcher.Source. The crumb is session specific and is
// left out so cached responses survive across processes.
func (s *Source) Signature(symbol string) string {
	q := url.Values{}
	q.Set("modules", strings.Join(s.modules, ","))
	path := strings.Replace(quoteSummaryPath, "{symbol}", url.PathEscape(symbol), 1)
	return fmt.Sprintf("%s %s?%s", http.MethodGet, path, q.Encode())
}

// Do implements fetcher.Source
func (s *Source) Do(ctx context.Context, symbol string) ([]byte, error) {
	crumb, err := s.ensureCrumb(ctx)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"modules": strings.Join(s.modules, ","),
	}
	if crumb != "" {
		params["crumb"] = crumb
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(params).
		Get(quoteSummaryPath)

	if err != nil {
		return nil, fetcher.ClassifyTransportError(err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		// Yahoo answers unknown symbols with 404, that is absence not failure
		return nil, nil
	case resp.StatusCode() == http.StatusUnauthorized:
		s.resetCrumb()
		return nil, fetcher.ClassifyHTTPError(resp.StatusCode())
	case !resp.IsSuccess():
		return nil, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	return []byte(resp.String()), nil
}

// Decode implements fetcher.Source
func (s *Source) Decode(body []byte) (fetcher.Payload, error) {
	return DecodeQuoteSummary(body)
}

// DecodeQuoteSummary flattens the modules of a quote summary into one payload.
// Formatted numbers ({"raw": 1.5, "fmt": "1.50"}) are reduced to their raw value,
// nested objects without a raw value are dropped. An empty result decodes to nil.
func DecodeQuoteSummary(body []byte) (fetcher.Payload, error) {
	var resp QuoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode quote summary: %w", err)
	}

	if len(resp.QuoteSummary.Result) == 0 {
		return nil, nil
	}

	payload := fetcher.Payload{}
	for _, module := range orderedModules(resp.QuoteSummary.Result[0]) {
		var fields map[string]any
		if err := json.Unmarshal(resp.QuoteSummary.Result[0][module], &fields); err != nil {
			// Some modules are null or arrays, they carry nothing we extract
			continue
		}
		for key, value := range fields {
			if v, ok := flatten(value); ok {
				payload[key] = v
			}
		}
	}

	if len(payload) == 0 {
		return nil, nil
	}
	return payload, nil
}

// orderedModules returns unknown modules sorted by name followed by the known
// ones in DefaultModules order, so overrides are deterministic.
func orderedModules(result map[string]json.RawMessage) []string {
	var out []string
	seen := make(map[string]bool, len(result))
	for _, m := range DefaultModules {
		if _, ok := result[m]; ok {
			out = append(out, m)
			seen[m] = true
		}
	}
	var rest []string
	for m := range result {
		if !seen[m] {
			rest = append(rest, m)
		}
	}
	slices.Sort(rest)
	return append(rest, out...)
}

func flatten(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case map[string]any:
		raw, ok := v["raw"]
		if !ok || raw == nil {
			return nil, false
		}
		return raw, true
	case []any:
		return nil, false
	default:
		return v, true
	}
}

// ensureCrumb performs the cookie + crumb handshake once per process
func (s *Source) ensureCrumb(ctx context.Context) (string, error) {
	if s.crumbURL == "" {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crumb != "" {
		return s.crumb, nil
	}

	if s.cookieURL != "" {
		// fc.yahoo.com answers 404 but still sets the session cookie
		if _, err := s.client.R().SetContext(ctx).Get(s.cookieURL); err != nil {
			return "", fetcher.ClassifyTransportError(err)
		}
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/plain").
		Get(s.crumbURL)
	if err != nil {
		return "", fetcher.ClassifyTransportError(err)
	}
	if !resp.IsSuccess() {
		return "", fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	crumb := strings.TrimSpace(resp.String())
	if crumb == "" || strings.Contains(crumb, "<") {
		return "", fetcher.NewClientError(resp.StatusCode(), "yahoo returned an invalid crumb")
	}

	s.log.Debug("acquired yahoo session crumb")
	s.crumb = crumb
	return crumb, nil
}

func (s *Source) resetCrumb() {
	s.mu.Lock()
	s.crumb = ""
	s.mu.Unlock()
}
