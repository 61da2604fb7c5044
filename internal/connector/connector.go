package connector

import (
	"context"
	"errors"

	"github.com/hejijunhao/droidlog/internal/model"
)

// ErrUnknownProvider is returned by Get for a name nothing registered.
var ErrUnknownProvider = errors.New("unknown connector provider")

// Connector defines the interface all raw line sources must implement.
type Connector interface {
	// Stream starts reading and sends lines as they arrive. The channel is
	// closed when the source is exhausted or ctx is cancelled. A failure is
	// reported once, as a final RawLine with Err set.
	Stream(ctx context.Context, cfg ConnectorConfig) (<-chan model.RawLine, error)

	// Query reads what the source currently holds and returns it as a batch.
	Query(ctx context.Context, cfg ConnectorConfig, params QueryParams) ([]model.RawLine, error)
}

// ConnectorConfig holds provider-specific connection settings.
type ConnectorConfig struct {
	Provider string
	Path     string   // file and follow
	Command  []string // exec; empty means the default adb invocation
	Endpoint string   // relay base URL
	APIKey   string   // relay bearer token
	Extra    map[string]string
}

// QueryParams bounds a batch read.
type QueryParams struct {
	// Limit keeps only the last Limit lines. Zero means everything.
	Limit int
}
