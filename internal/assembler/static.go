package assembler

import (
	"fmt"
	"io"

	"github.com/hejijunhao/droidlog/internal/connector"
	"github.com/hejijunhao/droidlog/internal/model"
)

// Assemble runs the assembler rules over a complete set of lines. There is
// nothing to wait for, so no timer is involved: a record is final as soon as
// the next header line (or the end of input) is seen.
func Assemble(lines []string, opts ...Option) []model.Record {
	m := newMachine(buildOptions(opts))
	records := make([]model.Record, 0, len(lines)/2+1)
	collect := func(r model.Record) { records = append(records, r) }
	for _, line := range lines {
		m.step(line, collect)
	}
	m.flush(collect)
	return records
}

// AssembleReader reads r to the end and assembles its lines.
func AssembleReader(r io.Reader, opts ...Option) ([]model.Record, error) {
	m := newMachine(buildOptions(opts))
	var records []model.Record
	collect := func(r model.Record) { records = append(records, r) }

	scanner := connector.NewScanner(r)
	for scanner.Scan() {
		m.step(scanner.Text(), collect)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	m.flush(collect)
	return records, nil
}
