// Package stdin reads log lines piped into the process.
package stdin

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hejijunhao/droidlog/internal/connector"
	"github.com/hejijunhao/droidlog/internal/model"
)

const name = "stdin"

func init() {
	connector.Register(name, func() connector.Connector {
		return &Connector{}
	})
}

// Connector implements connector.Connector for standard input.
type Connector struct {
	// Reader replaces os.Stdin when set.
	Reader io.Reader
}

func (c *Connector) reader() io.Reader {
	if c.Reader != nil {
		return c.Reader
	}
	return os.Stdin
}

func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawLine, error) {
	r := c.reader()
	ch := make(chan model.RawLine, 256)
	go func() {
		defer close(ch)
		if err := connector.Pump(ctx, r, name, ch); err != nil && ctx.Err() == nil {
			connector.Fail(ctx, ch, name, fmt.Errorf("stdin connector: %w", err))
		}
	}()
	return ch, nil
}

func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawLine, error) {
	lines, err := connector.ReadLines(ctx, c.reader(), name, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("stdin connector: %w", err)
	}
	return lines, nil
}
