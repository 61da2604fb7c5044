package connector

import (
	"context"
	"errors"
	"testing"

	"github.com/hejijunhao/droidlog/internal/model"
)

var errStub = errors.New("stub connector")

type stubConnector struct{}

func (stubConnector) Stream(ctx context.Context, cfg ConnectorConfig) (<-chan model.RawLine, error) {
	return nil, errStub
}

func (stubConnector) Query(ctx context.Context, cfg ConnectorConfig, params QueryParams) ([]model.RawLine, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	Register("stub-b", func() Connector { return stubConnector{} })
	Register("stub-a", func() Connector { return stubConnector{} })

	ctor, err := Get("stub-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := ctor().Stream(context.Background(), ConnectorConfig{}); !errors.Is(err, errStub) {
		t.Errorf("Stream error = %v, want the stub's error", err)
	}

	names := Providers()
	ia, ib := -1, -1
	for i, n := range names {
		switch n {
		case "stub-a":
			ia = i
		case "stub-b":
			ib = i
		}
	}
	if ia < 0 || ib < 0 || ia > ib {
		t.Errorf("Providers() = %v, want both stubs in sorted order", names)
	}
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("does-not-exist")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("err = %v, want ErrUnknownProvider", err)
	}
}
