// Package parser classifies and decomposes logcat "threadtime" lines.
//
// A header line looks like
//
//	01-15 10:00:00.123  1234  5678 I ActivityManager: Start proc
//
// and starts a new record. Anything else is a continuation line that belongs
// to the record opened most recently, or an orphan when none is open.
// Parsing never fails: malformed input degrades to an Unknown or ParseError
// record that carries the raw line verbatim.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hejijunhao/droidlog/internal/model"
)

// headerPattern must stay byte-compatible with the threadtime format:
// date, time, pid, tid, level letter, tag up to the first colon, message.
var headerPattern = regexp.MustCompile(
	`^(\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}\.\d{3})\s+(\d+)\s+(\d+)\s+([VDIWEF])\s+([^:]*?):\s*(.*?)$`)

const timestampLayout = "2006-01-02 15:04:05.000"

// Parser turns header lines into records. The zero value is not usable;
// construct with New.
type Parser struct {
	now func() time.Time
	loc *time.Location
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the clock used for year inference and fallback timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// WithLocation sets the time zone header timestamps are interpreted in.
// Default: time.Local.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) { p.loc = loc }
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = New()

// IsHeader reports whether line starts a new record.
func IsHeader(line string) bool {
	return headerPattern.MatchString(line)
}

// Parse parses line with the default parser.
func Parse(line string) (model.Record, bool) {
	return defaultParser.Parse(line)
}

// Parse decomposes line into a record. The boolean reports whether line was
// a real header line; when false the returned record is the Unknown fallback
// a caller may use if it has no open record to attach the line to.
func (p *Parser) Parse(line string) (rec model.Record, header bool) {
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return p.Orphan(line), false
	}

	now := p.now()
	defer func() {
		if r := recover(); r != nil {
			rec = parseError(line, now)
			header = true
		}
	}()
	return p.fields(line, m, now), true
}

// Orphan builds the standalone record used for a continuation line that has
// nothing to attach to.
func (p *Parser) Orphan(line string) model.Record {
	return model.Record{
		Timestamp:     p.now(),
		Level:         model.LevelInfo,
		Tag:           model.TagUnknown,
		Message:       strings.TrimSpace(line),
		RawText:       line,
		OriginalIndex: model.NoIndex,
	}
}

func parseError(line string, now time.Time) model.Record {
	return model.Record{
		Timestamp:     now,
		Level:         model.LevelInfo,
		Tag:           model.TagParseError,
		Message:       line,
		RawText:       line,
		OriginalIndex: model.NoIndex,
	}
}

func (p *Parser) fields(line string, m []string, now time.Time) model.Record {
	return model.Record{
		Timestamp:     p.timestamp(m[1], now),
		Level:         model.ParseLevelCode(m[4]),
		PID:           atoiOrZero(m[2]),
		TID:           atoiOrZero(m[3]),
		Tag:           strings.TrimSpace(m[5]),
		Message:       m[6],
		RawText:       line,
		OriginalIndex: model.NoIndex,
	}
}

// timestamp prefixes the current year, since threadtime omits it. A date that
// does not exist in that year (Feb 29 read just after new year) falls back
// to now.
func (p *Parser) timestamp(s string, now time.Time) time.Time {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return now
	}
	value := fmt.Sprintf("%04d-%s %s", now.In(p.loc).Year(), parts[0], parts[1])
	ts, err := time.ParseInLocation(timestampLayout, value, p.loc)
	if err != nil {
		return now
	}
	return ts
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
