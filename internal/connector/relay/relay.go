// Package relay polls an HTTP log relay: a small service next to the device
// that buffers logcat lines and serves them by sequence number.
//
//	GET /lines?since=N&limit=M  ->  {"lines": ["..."], "next": N}
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/valyala/fastjson"

	"github.com/hejijunhao/droidlog/internal/connector"
	"github.com/hejijunhao/droidlog/internal/connector/httpclient"
	"github.com/hejijunhao/droidlog/internal/model"
)

const (
	name                = "relay"
	defaultPollInterval = 500 * time.Millisecond
	pageSize            = 500
	linesPath           = "/lines"
)

func init() {
	connector.Register(name, func() connector.Connector {
		return &Connector{}
	})
}

// Connector implements connector.Connector for a log relay.
//
// Extra keys:
//
//	poll_interval  Go duration between polls (default 500ms)
//	since          sequence number to start from (default 0)
type Connector struct{}

var parsers fastjson.ParserPool

// page is one decoded /lines response.
type page struct {
	lines []string
	next  int64
}

func parsePage(body []byte) (page, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return page{}, fmt.Errorf("decode relay response: %w", err)
	}
	if v.Type() != fastjson.TypeObject {
		return page{}, fmt.Errorf("decode relay response: expected object, got %s", v.Type())
	}
	var pg page
	for _, item := range v.GetArray("lines") {
		b, err := item.StringBytes()
		if err != nil {
			return page{}, fmt.Errorf("decode relay response: %w", err)
		}
		pg.lines = append(pg.lines, string(b))
	}
	pg.next = v.GetInt64("next")
	return pg, nil
}

func fetch(ctx context.Context, client *httpclient.Client, since int64) (page, error) {
	q := url.Values{}
	q.Set("since", strconv.FormatInt(since, 10))
	q.Set("limit", strconv.Itoa(pageSize))
	body, err := client.Get(ctx, linesPath, q)
	if err != nil {
		return page{}, err
	}
	return parsePage(body)
}

func newClient(cfg connector.ConnectorConfig) (*httpclient.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("relay connector: missing endpoint")
	}
	return httpclient.New(cfg.Endpoint, cfg.APIKey, httpclient.WithTimeout(10*time.Second)), nil
}

func startSeq(cfg connector.ConnectorConfig) int64 {
	if raw := cfg.Extra["since"]; raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return 0
}

// Query pages through everything the relay holds.
func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawLine, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	since := startSeq(cfg)

	var results []model.RawLine
	for {
		pg, err := fetch(ctx, client, since)
		if err != nil {
			return nil, fmt.Errorf("relay connector: %w", err)
		}
		for _, text := range pg.lines {
			results = append(results, connector.Line(name, text))
		}
		if len(pg.lines) == 0 || pg.next <= since {
			break
		}
		since = pg.next
	}

	if params.Limit > 0 && len(results) > params.Limit {
		results = results[len(results)-params.Limit:]
	}
	return results, nil
}

// Stream polls the relay until ctx is cancelled. Transient failures are
// logged and retried on the next tick; a client error (4xx) ends the stream.
func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawLine, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	pollInterval := defaultPollInterval
	if raw := cfg.Extra["poll_interval"]; raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			pollInterval = d
		}
	}

	ch := make(chan model.RawLine, 256)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		since := startSeq(cfg)
		for {
			var err error
			since, err = poll(ctx, client, since, ch)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				connector.Fail(ctx, ch, name, fmt.Errorf("relay connector: %w", err))
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return ch, nil
}

// poll drains every page available after since and returns the new cursor.
// Only errors that polling again cannot fix are returned.
func poll(ctx context.Context, client *httpclient.Client, since int64, ch chan<- model.RawLine) (int64, error) {
	for {
		pg, err := fetch(ctx, client, since)
		if err != nil {
			if ctx.Err() != nil {
				return since, ctx.Err()
			}
			var apiErr *httpclient.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError && apiErr.StatusCode != http.StatusTooManyRequests {
				return since, err
			}
			slog.Warn("poll error", "connector", name, "error", err)
			return since, nil
		}

		for _, text := range pg.lines {
			if !connector.Send(ctx, ch, connector.Line(name, text)) {
				return since, ctx.Err()
			}
		}
		if pg.next > since {
			since = pg.next
		}
		if len(pg.lines) < pageSize {
			return since, nil
		}
	}
}
