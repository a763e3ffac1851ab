package sources

import (
	"bufio"
	"context"
	"encoding/csv"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/HatiCode/trendlens/pkg/series"
)

// HoursPerYear is the row count that marks an energy-model export.
const HoursPerYear = 8760

const maxLineSize = 16 << 20

// Row-key layouts tried in order; all are parsed as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01/02/2006",
}

// ParseTime parses a row key with the supported layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type splitFunc func(line string) ([]string, error)

func splitTab(line string) ([]string, error) { return trimFields(strings.Split(line, "\t")), nil }

func splitComma(line string) ([]string, error) { return trimFields(strings.Split(line, ",")), nil }

// splitQuoted splits one line with CSV quoting rules.
func splitQuoted(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return nil, err
	}
	return trimFields(fields), nil
}

func trimFields(fields []string) []string {
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

// table is the fully parsed file. columns[0] holds the row keys.
type table struct {
	header     []string
	columns    [][]string
	timestamps []time.Time
	needsSort  bool
}

func (t *table) column(trend string) ([]string, bool) {
	for i := 1; i < len(t.header); i++ {
		if t.header[i] == trend {
			return t.columns[i], true
		}
	}
	return nil, false
}

// Delimited reads comma- or tab-delimited text files. The first line is the
// header and the first column the row key. All cached state is populated
// under a mutex, so concurrent first access reads the file once.
type Delimited struct {
	path string
	opts options

	mu        sync.Mutex
	trends    []string
	kind      Kind
	kindKnown bool
	table     *table
}

// NewDelimited returns a source for path. Nothing is read until first use.
func NewDelimited(path string, opts ...Option) *Delimited {
	return &Delimited{path: path, opts: buildOptions(opts)}
}

func (d *Delimited) Header() string    { return d.path }
func (d *Delimited) ShortName() string { return ShortName(d.path) }

func (d *Delimited) splitter(header string) splitFunc {
	ext := strings.ToLower(filepath.Ext(d.path))
	switch {
	case ext == ".tsv" || strings.Contains(header, "\t"):
		return splitTab
	case ext == ".csv":
		return splitQuoted
	default:
		return splitComma
	}
}

// scan opens the file under the retry policy and hands a line scanner to fn.
// fn must rebuild its results from scratch on every call.
func (d *Delimited) scan(ctx context.Context, fn func(sc *bufio.Scanner) error) error {
	return d.opts.retry.Run(ctx, d.path, d.opts.obs, func() error {
		rc, err := d.opts.open(d.path)
		if err != nil {
			return err
		}
		defer rc.Close()

		sc := bufio.NewScanner(rc)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		if err := fn(sc); err != nil {
			return err
		}
		return sc.Err()
	})
}

func nextLine(sc *bufio.Scanner) (string, bool) {
	for sc.Scan() {
		line := strings.TrimPrefix(sc.Text(), "\ufeff")
		if strings.TrimSpace(line) != "" {
			return line, true
		}
	}
	return "", false
}

// reset drops every cache after an exhausted read.
func (d *Delimited) reset(err error) {
	d.trends = nil
	d.kindKnown = false
	d.table = nil
	d.opts.logger.Warn("source read failed, caches cleared", "source", d.path, "error", err)
}

// Trends returns the header fields after the first.
func (d *Delimited) Trends(ctx context.Context) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.trends == nil {
		var header []string
		err := d.scan(ctx, func(sc *bufio.Scanner) error {
			header = nil
			line, ok := nextLine(sc)
			if !ok {
				return nil
			}
			fields, err := d.splitter(line)(line)
			if err != nil {
				d.opts.logger.Debug("header does not split", "source", d.path, "error", err)
				return nil
			}
			header = fields
			return nil
		})
		if err != nil {
			d.reset(err)
			return []string{}
		}
		d.trends = []string{}
		if len(header) > 1 {
			d.trends = append(d.trends, header[1:]...)
		}
	}
	return append([]string(nil), d.trends...)
}

// Kind classifies the file from its first data row and its row count.
func (d *Delimited) Kind(ctx context.Context) Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, _ := d.kindLocked(ctx)
	return k
}

func (d *Delimited) kindLocked(ctx context.Context) (Kind, error) {
	if d.kindKnown {
		return d.kind, nil
	}
	var kind Kind
	err := d.scan(ctx, func(sc *bufio.Scanner) error {
		kind = detectKind(sc, d.splitter)
		return nil
	})
	if err != nil {
		d.reset(err)
		return KindNonTimeSeries, err
	}
	d.kind, d.kindKnown = kind, true
	d.opts.logger.Debug("source classified", "source", d.path, "kind", kind)
	return kind, nil
}

func detectKind(sc *bufio.Scanner, splitterFor func(string) splitFunc) Kind {
	header, ok := nextLine(sc)
	if !ok {
		return KindNonTimeSeries
	}
	split := splitterFor(header)

	first, ok := nextLine(sc)
	if !ok {
		return KindNonTimeSeries
	}
	fields, err := split(first)
	if err != nil || len(fields) == 0 {
		return KindNonTimeSeries
	}
	if _, ok := ParseTime(fields[0]); ok {
		return KindTimeSeries
	}

	rows := 1
	for {
		if _, ok := nextLine(sc); !ok {
			break
		}
		rows++
	}
	if rows == HoursPerYear {
		return KindEnergyModel
	}
	return KindNonTimeSeries
}

func (d *Delimited) tableLocked(ctx context.Context) (*table, error) {
	if d.table != nil {
		return d.table, nil
	}
	kind, err := d.kindLocked(ctx)
	if err != nil {
		return nil, err
	}

	start := energyModelStart(d.opts.now())
	var (
		t       *table
		dropped int
	)
	err = d.scan(ctx, func(sc *bufio.Scanner) error {
		t, dropped = &table{}, 0
		line, ok := nextLine(sc)
		if !ok {
			return nil
		}
		split := d.splitter(line)
		header, err := split(line)
		if err != nil {
			return nil
		}
		t.header = header
		t.columns = make([][]string, len(header))

		var prev time.Time
		for row := 0; ; row++ {
			line, ok := nextLine(sc)
			if !ok {
				break
			}
			fields, err := split(line)
			if err != nil || len(fields) < len(header) {
				dropped++
				continue
			}
			switch kind {
			case KindTimeSeries:
				ts, ok := ParseTime(fields[0])
				if !ok {
					dropped++
					continue
				}
				if len(t.timestamps) > 0 && ts.Before(prev) {
					t.needsSort = true
				}
				prev = ts
				t.timestamps = append(t.timestamps, ts)
			case KindEnergyModel:
				t.timestamps = append(t.timestamps, start.Add(time.Duration(row)*time.Hour))
			}
			for j := range header {
				t.columns[j] = append(t.columns[j], fields[j])
			}
		}
		return nil
	})
	if err != nil {
		d.reset(err)
		return nil, err
	}
	if dropped > 0 {
		d.opts.logger.Debug("dropped malformed rows", "source", d.path, "rows", dropped)
	}
	if d.trends == nil && len(t.header) > 0 {
		d.trends = append([]string{}, t.header[1:]...)
	}
	d.table = t
	return t, nil
}

// RawSeries returns the values of trend that parse as floats.
func (d *Delimited) RawSeries(ctx context.Context, trend string) []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := []float64{}
	t, err := d.tableLocked(ctx)
	if err != nil {
		return out
	}
	cells, ok := t.column(trend)
	if !ok {
		return out
	}
	for _, c := range cells {
		if v, err := strconv.ParseFloat(c, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// TimestampSeries pairs each parseable value of trend with its row time.
// Sources without a time axis return an empty series.
func (d *Delimited) TimestampSeries(ctx context.Context, trend string) *series.TimestampSeries {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := series.Empty(trend)
	t, err := d.tableLocked(ctx)
	if err != nil || t.timestamps == nil {
		return out
	}
	cells, ok := t.column(trend)
	if !ok || len(cells) != len(t.timestamps) {
		return out
	}
	for i, c := range cells {
		if v, err := strconv.ParseFloat(c, 64); err == nil {
			out.Append(t.timestamps[i], v)
		}
	}
	if t.needsSort {
		out.Sort()
	}
	return out
}

// Window implements Source.
func (d *Delimited) Window(ctx context.Context, trends []string, start, end time.Time) []*series.TimestampSeries {
	return window(ctx, trends, start, end, d.TimestampSeries)
}
