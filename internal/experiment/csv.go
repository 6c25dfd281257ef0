package experiment

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
)

// CSVSink collects results and writes them as one table on Close. Columns are
// run, run_id, sim, width, height, steps, time, settled, then data.*, vars.*
// and state.* over the union of keys seen, each group sorted. A state that
// never occurred in a run is written as 0.
type CSVSink struct {
	mu   sync.Mutex
	w    io.Writer
	rows []Result
}

// NewCSVSink writes to w on Close.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: w}
}

// Record buffers r.
func (s *CSVSink) Record(_ context.Context, r Result) error {
	s.mu.Lock()
	s.rows = append(s.rows, r)
	s.mu.Unlock()
	return nil
}

// Close writes the table, rows ordered by run number.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sort.Slice(s.rows, func(i, j int) bool { return s.rows[i].Run < s.rows[j].Run })

	dataKeys := unionKeys(s.rows, func(r Result) []string { return keysOf(r.Data) })
	varKeys := unionKeys(s.rows, func(r Result) []string { return keysOf(r.Vars) })
	stateKeys := unionKeys(s.rows, func(r Result) []string { return keysOf(r.States) })

	header := []string{"run", "run_id", "sim", "width", "height", "steps", "time", "settled"}
	for _, k := range dataKeys {
		header = append(header, "data."+k)
	}
	for _, k := range varKeys {
		header = append(header, "vars."+k)
	}
	for _, k := range stateKeys {
		header = append(header, "state."+k)
	}

	cw := csv.NewWriter(s.w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range s.rows {
		row := []string{
			strconv.Itoa(r.Run),
			r.RunID,
			r.Sim,
			strconv.Itoa(r.Size.W),
			strconv.Itoa(r.Size.H),
			strconv.Itoa(r.Steps),
			strconv.FormatFloat(r.Duration.Seconds(), 'f', 6, 64),
			strconv.FormatBool(r.Settled),
		}
		for _, k := range dataKeys {
			row = append(row, r.Data[k])
		}
		for _, k := range varKeys {
			row = append(row, r.Vars[k])
		}
		for _, k := range stateKeys {
			row = append(row, strconv.Itoa(r.States[k]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv run %d: %w", r.Run, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFile is a CSVSink that owns its file.
type CSVFile struct {
	*CSVSink
	f *os.File
}

// CreateCSV creates (or truncates) path for a CSV sink.
func CreateCSV(path string) (*CSVFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv: %w", err)
	}
	return &CSVFile{CSVSink: NewCSVSink(f), f: f}, nil
}

// Close writes the table and closes the file.
func (c *CSVFile) Close() error {
	werr := c.CSVSink.Close()
	cerr := c.f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

func keysOf[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func unionKeys(rows []Result, keys func(Result) []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		for _, k := range keys(r) {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
