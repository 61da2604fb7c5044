package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hejijunhao/droidlog/internal/config"
	"github.com/hejijunhao/droidlog/internal/model"
	"github.com/hejijunhao/droidlog/internal/output"
	"github.com/hejijunhao/droidlog/internal/output/async"
	"github.com/hejijunhao/droidlog/internal/output/file"
	"github.com/hejijunhao/droidlog/internal/output/multi"
	"github.com/hejijunhao/droidlog/internal/output/stdout"
	"github.com/hejijunhao/droidlog/internal/output/webhook"
)

type outputFlags struct {
	path      string
	format    string
	verbosity string
	noColor   bool
	webhook   string
	hookLevel string
}

func (f *outputFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.path, "output", "o", "", "write records to this file instead of stdout (.gz/.zst compress)")
	fs.StringVar(&f.format, "format", "", "record format: text, raw or json")
	fs.StringVar(&f.verbosity, "verbosity", "", "message detail: minimal, standard or full")
	fs.BoolVar(&f.noColor, "no-color", false, "disable level colours")
	fs.StringVar(&f.webhook, "webhook", "", "also POST records to this URL")
	fs.StringVar(&f.hookLevel, "webhook-level", "", "lowest level sent to --webhook (e.g. error)")
}

// apply copies explicitly set flags over the config.
func (f *outputFlags) apply(cmd *cobra.Command, cfg *config.OutputConfig) {
	fs := cmd.Flags()
	if fs.Changed("output") {
		cfg.Path = f.path
	}
	if fs.Changed("format") {
		cfg.Format = f.format
	}
	if fs.Changed("verbosity") {
		cfg.Verbosity = f.verbosity
	}
	if f.noColor {
		cfg.Color = false
	}
	if fs.Changed("webhook") {
		cfg.Webhook = f.webhook
	}
	if fs.Changed("webhook-level") {
		cfg.WebhookLevel = f.hookLevel
	}
}

// sinkFormat resolves the configured format. Without one, files get the
// source lines back unchanged and stdout gets text.
func sinkFormat(cfg config.OutputConfig) (output.Format, error) {
	if cfg.Format == "" && cfg.Path != "" {
		return output.FormatRaw, nil
	}
	return output.ParseFormat(cfg.Format)
}

// buildOutput assembles the sinks described by cfg. Text for stdout goes to w.
func buildOutput(cfg config.OutputConfig, w io.Writer) (output.Output, error) {
	format, err := sinkFormat(cfg)
	if err != nil {
		return nil, err
	}
	verbosity, err := output.ParseVerbosity(cfg.Verbosity)
	if err != nil {
		return nil, err
	}
	hookOpts := []webhook.Option{webhook.WithVerbosity(verbosity)}
	if cfg.WebhookLevel != "" {
		l, err := model.ParseLevelName(cfg.WebhookLevel)
		if err != nil {
			return nil, fmt.Errorf("webhook level: %w", err)
		}
		hookOpts = append(hookOpts, webhook.WithMinLevel(l))
	}

	var primary output.Output
	if cfg.Path != "" {
		fo, err := file.New(cfg.Path,
			file.WithFormat(format),
			file.WithVerbosity(verbosity),
			file.WithMaxSize(cfg.MaxSize),
		)
		if err != nil {
			return nil, err
		}
		primary = fo
	} else {
		primary = stdout.New(format, verbosity, stdout.WithWriter(w), stdout.WithColor(cfg.Color))
	}

	if cfg.Webhook == "" {
		return primary, nil
	}
	hook := async.New(webhook.New(cfg.Webhook, hookOpts...), async.WithDropOnFull(), async.WithOnError(func(err error) {
		slog.Warn("webhook delivery failed", "error", err)
	}))
	return multi.New(primary, hook), nil
}
