package droidlog

import "time"

type options struct {
	debounce       time.Duration
	merge          bool
	preserveIndent bool
	hide           []string
	tag            string
	message        string
	pid            string
}

// Option configures a Droidlog instance.
type Option func(*options)

// WithDebounce sets how long Stream waits for continuation lines before a
// record is considered complete. Default: 100ms.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithMerge controls whether consecutive lines from the same thread with the
// same millisecond timestamp are merged into one record. Default: true.
func WithMerge(enabled bool) Option {
	return func(o *options) {
		o.merge = enabled
	}
}

// WithPreserveIndent keeps leading whitespace of continuation lines.
func WithPreserveIndent(preserve bool) Option {
	return func(o *options) {
		o.preserveIndent = preserve
	}
}

// WithHiddenLevels hides the named levels ("verbose", "d", "Warn", ...).
// Unrecognised names are ignored.
func WithHiddenLevels(levels ...string) Option {
	return func(o *options) {
		o.hide = append(o.hide, levels...)
	}
}

// WithTagFilter sets the initial tag expression.
func WithTagFilter(expr string) Option {
	return func(o *options) { o.tag = expr }
}

// WithMessageFilter sets the initial message expression.
func WithMessageFilter(expr string) Option {
	return func(o *options) { o.message = expr }
}

// WithPIDFilter sets the initial PID expression. A plain number matches that
// PID exactly.
func WithPIDFilter(expr string) Option {
	return func(o *options) { o.pid = expr }
}

func defaultOptions() options {
	return options{
		debounce: 100 * time.Millisecond,
		merge:    true,
	}
}
