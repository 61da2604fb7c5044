// Package exec streams the standard output of a command, by default
// adb logcat in threadtime format.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hejijunhao/droidlog/internal/connector"
	"github.com/hejijunhao/droidlog/internal/model"
)

const name = "exec"

// DefaultCommand is run when ConnectorConfig.Command is empty.
var DefaultCommand = []string{"adb", "logcat", "-v", "threadtime"}

func init() {
	connector.Register(name, func() connector.Connector {
		return &Connector{}
	})
}

// Connector implements connector.Connector by running a command.
//
// Extra keys:
//
//	serial  device serial passed to adb as -s (default command only)
type Connector struct{}

// Command returns the argv to run. dump selects the non-blocking variant of
// the default command (logcat -d).
func Command(cfg connector.ConnectorConfig, dump bool) []string {
	if len(cfg.Command) > 0 {
		return cfg.Command
	}
	argv := []string{DefaultCommand[0]}
	if serial := cfg.Extra["serial"]; serial != "" {
		argv = append(argv, "-s", serial)
	}
	argv = append(argv, DefaultCommand[1:]...)
	if dump {
		argv = append(argv, "-d")
	}
	return argv
}

func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawLine, error) {
	argv := Command(cfg, false)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("exec connector: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("exec connector: start %s: %w", argv[0], err)
	}

	ch := make(chan model.RawLine, 256)
	go func() {
		defer close(ch)
		pumpErr := connector.Pump(ctx, stdout, name, ch)
		if pumpErr != nil {
			// Unblock the child if it is still writing.
			_ = cmd.Process.Kill()
		}
		waitErr := cmd.Wait()
		if ctx.Err() != nil {
			return
		}
		if pumpErr != nil {
			connector.Fail(ctx, ch, name, fmt.Errorf("exec connector: %w", pumpErr))
			return
		}
		if waitErr != nil {
			connector.Fail(ctx, ch, name, exitError(argv, waitErr, stderr.String()))
		}
	}()
	return ch, nil
}

// Query runs the dump variant of the command to completion.
func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawLine, error) {
	argv := Command(cfg, true)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, exitError(argv, err, stderr.String())
	}
	lines, err := connector.ReadLines(ctx, bytes.NewReader(out), name, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("exec connector: %w", err)
	}
	return lines, nil
}

func exitError(argv []string, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if len(stderr) > 512 {
		stderr = stderr[len(stderr)-512:]
	}
	if stderr != "" {
		return fmt.Errorf("exec connector: %s: %w: %s", strings.Join(argv, " "), err, stderr)
	}
	return fmt.Errorf("exec connector: %s: %w", strings.Join(argv, " "), err)
}
