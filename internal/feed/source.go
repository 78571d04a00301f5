package feed

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"eventcal/internal/event"
	appLog "eventcal/internal/log"
)

// Source produces the rows of a feed.
type Source interface {
	Rows(ctx context.Context, url string) ([]Row, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, url string) ([]Row, error)

func (f SourceFunc) Rows(ctx context.Context, url string) ([]Row, error) { return f(ctx, url) }

// HTTPSource fetches a CSV or ICS feed over HTTP.
type HTTPSource struct {
	Fetcher *Fetcher
	// Location is the zone ICS instants are written into; nil means time.Local.
	Location *time.Location
	Columns  event.Columns
	// Past and Future bound ICS recurrence expansion around Now.
	Past, Future time.Duration
	Now          func() time.Time
}

// NewHTTPSource returns a source with a one year expansion window each way.
func NewHTTPSource(f *Fetcher, loc *time.Location) *HTTPSource {
	return &HTTPSource{
		Fetcher:  f,
		Location: loc,
		Past:     365 * 24 * time.Hour,
		Future:   365 * 24 * time.Hour,
	}
}

func (s *HTTPSource) Rows(ctx context.Context, url string) ([]Row, error) {
	f := s.Fetcher
	if f == nil {
		f = NewFetcher("", 0)
	}
	res, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if !isICS(url, res.ContentType, res.Body) {
		rows, err := DecodeCSV(res.Body)
		if err != nil {
			return nil, fmt.Errorf("feed: %s: %w", redactURL(url), err)
		}
		appLog.Debug("feed decoded", "format", "csv", "rows", len(rows), "from_cache", res.FromCache)
		return rows, nil
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now()
	rows, err := DecodeICS(res.Body, ExpandConfig{
		Location:   s.Location,
		RangeStart: t.Add(-s.Past),
		RangeEnd:   t.Add(s.Future),
		Columns:    s.Columns,
	})
	if err != nil {
		return nil, fmt.Errorf("feed: %s: %w", redactURL(url), err)
	}
	appLog.Debug("feed decoded", "format", "ics", "rows", len(rows), "from_cache", res.FromCache)
	return rows, nil
}

func isICS(url, contentType string, body []byte) bool {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	if strings.HasSuffix(strings.ToLower(url), ".ics") {
		return true
	}
	if strings.HasPrefix(strings.ToLower(contentType), "text/calendar") {
		return true
	}
	head := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	return bytes.HasPrefix(head, []byte("BEGIN:VCALENDAR"))
}
