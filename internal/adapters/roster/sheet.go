package roster

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	model "github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
	"github.com/xuri/excelize/v2"
	"golang.org/x/oauth2"
)

// Export formats understood by SheetProvider.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultMaxBytes = 8 << 20
)

// Source locates one tournament's export.
type Source struct {
	URL    string `koanf:"sheet_url" validate:"required,url"`
	Format string `koanf:"format" validate:"omitempty,oneof=csv xlsx"`
	Sheet  string `koanf:"sheet"`
	Region string `koanf:"region" validate:"required"`
}

// SheetProvider downloads CSV or XLSX exports of the registration sheet and
// maps them to rosters.
type SheetProvider struct {
	sources  map[string]Source
	client   *http.Client
	token    string
	timeout  time.Duration
	maxBytes int64
	mapping  FieldMapping
	now      func() time.Time
	logger   logger.Logger
}

// NewSheetProvider creates a provider for the configured tournaments.
func NewSheetProvider(sources map[string]Source, opts ...Option) *SheetProvider {
	p := &SheetProvider{
		sources:  make(map[string]Source, len(sources)),
		client:   http.DefaultClient,
		timeout:  defaultTimeout,
		maxBytes: defaultMaxBytes,
		mapping:  DefaultMapping(),
		now:      time.Now,
		logger:   logger.Get().Named("roster"),
	}
	for id, src := range sources {
		p.sources[id] = src
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.token != "" {
		base := p.client
		p.client = &http.Client{
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.token, TokenType: "Bearer"}),
				Base:   base.Transport,
			},
			Timeout: base.Timeout,
		}
	}
	return p
}

// Fetch downloads and parses the tournament's export.
func (p *SheetProvider) Fetch(ctx context.Context, tournamentID string) (model.Roster, error) {
	src, ok := p.sources[tournamentID]
	if !ok {
		metrics.RecordRosterFetch("unknown", 0)
		return model.Roster{}, fmt.Errorf("%w: %s is not configured", ErrTournamentUnknown, tournamentID)
	}

	start := time.Now()
	rows, err := p.download(ctx, src)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		outcome := "unreachable"
		if errors.Is(err, ErrTournamentUnknown) {
			outcome = "unknown"
		}
		metrics.RecordRosterFetch(outcome, elapsed)
		p.logger.Warn(ctx, "roster fetch failed",
			logger.String("tournament", tournamentID),
			logger.Error(err),
		)
		return model.Roster{}, err
	}

	entrants, err := p.mapping.Entrants(rows)
	if err != nil {
		metrics.RecordRosterFetch("malformed", elapsed)
		return model.Roster{}, fmt.Errorf("%w: %w", ErrRosterUnreachable, err)
	}
	metrics.RecordRosterFetch("ok", elapsed)
	p.logger.Debug(ctx, "roster fetched",
		logger.String("tournament", tournamentID),
		logger.Int("entrants", len(entrants)),
		logger.Float64("latency_ms", elapsed),
	)
	return model.Roster{
		TournamentID: tournamentID,
		Region:       src.Region,
		Entrants:     entrants,
		FetchedAt:    p.now().UTC(),
	}, nil
}

func (p *SheetProvider) download(ctx context.Context, src Source) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrRosterUnreachable, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRosterUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: sheet returned %d", ErrTournamentUnknown, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: sheet returned %d", ErrRosterUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrRosterUnreachable, err)
	}
	if int64(len(body)) > p.maxBytes {
		return nil, fmt.Errorf("%w: %w: export exceeds %d bytes", ErrRosterUnreachable, ErrMalformedRoster, p.maxBytes)
	}

	format := src.Format
	if format == "" {
		format = sniff(resp.Header.Get("Content-Type"), body)
	}
	rows, err := decode(format, src.Sheet, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRosterUnreachable, err)
	}
	return rows, nil
}

// sniff guesses the export format. XLSX files are zip archives.
func sniff(contentType string, body []byte) string {
	if strings.Contains(contentType, "spreadsheetml") || bytes.HasPrefix(body, []byte("PK\x03\x04")) {
		return FormatXLSX
	}
	return FormatCSV
}

func decode(format, sheet string, body []byte) ([][]string, error) {
	switch format {
	case FormatXLSX:
		return decodeXLSX(sheet, body)
	case FormatCSV:
		return decodeCSV(body)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrMalformedRoster, format)
	}
}

func decodeCSV(body []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, []byte("\uFEFF"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRoster, err)
	}
	return rows, nil
}

func decodeXLSX(sheet string, body []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %w", ErrMalformedRoster, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedRoster)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %w", ErrMalformedRoster, sheet, err)
	}
	return rows, nil
}
