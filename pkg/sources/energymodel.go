package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"

	"github.com/HatiCode/trendlens/pkg/series"
)

// badgerLogger routes badger's printf logging into slog.
type badgerLogger struct{ l *slog.Logger }

func (b badgerLogger) Errorf(f string, args ...any) {
	b.l.Error(strings.TrimSpace(fmt.Sprintf(f, args...)), "component", "badger")
}

func (b badgerLogger) Warningf(f string, args ...any) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(f, args...)), "component", "badger")
}

func (b badgerLogger) Infof(f string, args ...any) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(f, args...)), "component", "badger")
}

func (b badgerLogger) Debugf(f string, args ...any) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(f, args...)), "component", "badger")
}

func openEnergyDB(dir string, readOnly bool, logger *slog.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{logger}).
		WithReadOnly(readOnly).
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(32 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open energy model %s: %w", dir, err)
	}
	return db, nil
}

// IsEnergyModelDir reports whether dir holds a badger database.
func IsEnergyModelDir(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, "MANIFEST"))
	return err == nil && fi.Mode().IsRegular()
}

type block struct {
	indexes []uint32
	values  []float64
}

// EnergyModel reads simulation output stored in an embedded badger database.
// The database is opened for each load and closed again, so a writer can
// hold it between reads; a locked database is retried like a busy file.
type EnergyModel struct {
	dir  string
	opts options

	mu      sync.Mutex
	loaded  bool
	entries []DictEntry
	byName  map[string]DictEntry
	times   []time.Time
	blocks  map[uint32]block
}

// NewEnergyModel returns a source for the database in dir.
func NewEnergyModel(dir string, opts ...Option) *EnergyModel {
	return &EnergyModel{dir: dir, opts: buildOptions(opts)}
}

func (e *EnergyModel) Header() string    { return e.dir }
func (e *EnergyModel) ShortName() string { return ShortName(e.dir) }

// Kind is always KindEnergyModel.
func (e *EnergyModel) Kind(context.Context) Kind { return KindEnergyModel }

func (e *EnergyModel) reset(err error) {
	e.loaded = false
	e.entries, e.byName, e.times, e.blocks = nil, nil, nil, nil
	e.opts.logger.Warn("energy model read failed, caches cleared", "source", e.dir, "error", err)
}

func (e *EnergyModel) withDB(ctx context.Context, fn func(txn *badger.Txn) error) error {
	return e.opts.retry.Run(ctx, e.dir, e.opts.obs, func() error {
		db, err := openEnergyDB(e.dir, true, e.opts.logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.View(fn)
	})
}

func (e *EnergyModel) indexLocked(ctx context.Context) error {
	if e.loaded {
		return nil
	}
	year := energyModelStart(e.opts.now()).Year()

	var (
		entries []DictEntry
		times   []time.Time
	)
	err := e.withDB(ctx, func(txn *badger.Txn) error {
		entries, times = nil, nil
		if err := scanPrefix(txn, prefixDict, func(val []byte) error {
			var d DictEntry
			if err := json.Unmarshal(val, &d); err != nil {
				return fmt.Errorf("decode dictionary entry: %w", err)
			}
			entries = append(entries, d)
			return nil
		}); err != nil {
			return err
		}
		return scanPrefix(txn, prefixTime, func(val []byte) error {
			var t TimeEntry
			if err := json.Unmarshal(val, &t); err != nil {
				return fmt.Errorf("decode time entry: %w", err)
			}
			times = append(times, time.Date(year, time.Month(t.Month), t.Day, t.Hour, t.Minute, 0, 0, time.UTC))
			return nil
		})
	})
	if err != nil {
		e.reset(err)
		return err
	}

	e.entries = entries
	e.times = times
	e.byName = make(map[string]DictEntry, len(entries))
	for _, d := range entries {
		name := d.TrendName()
		if _, dup := e.byName[name]; !dup {
			e.byName[name] = d
		}
	}
	e.blocks = make(map[uint32]block)
	e.loaded = true
	e.opts.logger.Debug("energy model indexed", "source", e.dir, "trends", len(entries), "hours", len(times))
	return nil
}

func scanPrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func (e *EnergyModel) blockLocked(ctx context.Context, trend string) (block, bool) {
	if err := e.indexLocked(ctx); err != nil {
		return block{}, false
	}
	d, ok := e.byName[trend]
	if !ok {
		return block{}, false
	}
	if b, ok := e.blocks[d.ID]; ok {
		return b, true
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		e.opts.logger.Error("zstd decoder", "error", err)
		return block{}, false
	}
	defer dec.Close()

	var b block
	err = e.withDB(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(dataKey(d.ID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			b = block{}
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			idx, vals, err := decodeBlock(dec, val)
			if err != nil {
				return err
			}
			b = block{indexes: idx, values: vals}
			return nil
		})
	})
	if err != nil {
		e.reset(err)
		return block{}, false
	}
	e.blocks[d.ID] = b
	return b, true
}

// Trends lists "KEY:Name [units]" in dictionary order.
func (e *EnergyModel) Trends(ctx context.Context) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := []string{}
	if err := e.indexLocked(ctx); err != nil {
		return out
	}
	for _, d := range e.entries {
		out = append(out, d.TrendName())
	}
	return out
}

func (e *EnergyModel) RawSeries(ctx context.Context, trend string) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, _ := e.blockLocked(ctx, trend)
	return append([]float64{}, b.values...)
}

// TimestampSeries maps each value's time index through the time table.
// Values whose index has no time row are dropped.
func (e *EnergyModel) TimestampSeries(ctx context.Context, trend string) *series.TimestampSeries {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := series.Empty(trend)
	b, ok := e.blockLocked(ctx, trend)
	if !ok {
		return out
	}
	for i, idx := range b.indexes {
		if int(idx) < len(e.times) {
			out.Append(e.times[idx], b.values[i])
		}
	}
	if !out.IsSorted() {
		out.Sort()
	}
	return out
}

func (e *EnergyModel) Window(ctx context.Context, trends []string, start, end time.Time) []*series.TimestampSeries {
	return window(ctx, trends, start, end, e.TimestampSeries)
}

// EnergyModelWriter builds an energy-model database.
type EnergyModelWriter struct {
	db     *badger.DB
	enc    *zstd.Encoder
	nextID uint32
}

// CreateEnergyModel opens (creating if needed) a writable database in dir.
func CreateEnergyModel(dir string, logger *slog.Logger) (*EnergyModelWriter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openEnergyDB(dir, false, logger)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	return &EnergyModelWriter{db: db, enc: enc}, nil
}

// HourlyTimes returns HoursPerYear consecutive hourly rows from start.
func HourlyTimes(start time.Time) []TimeEntry {
	out := make([]TimeEntry, HoursPerYear)
	for i := range out {
		t := start.Add(time.Duration(i) * time.Hour)
		out[i] = TimeEntry{Month: int(t.Month()), Day: t.Day(), Hour: t.Hour(), Minute: t.Minute()}
	}
	return out
}

// SetTimes writes the time table, replacing rows with the same index.
func (w *EnergyModelWriter) SetTimes(times []TimeEntry) error {
	wb := w.db.NewWriteBatch()
	defer wb.Cancel()
	for i, t := range times {
		val, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if err := wb.Set(timeKey(uint32(i)), val); err != nil {
			return fmt.Errorf("write time row %d: %w", i, err)
		}
	}
	return wb.Flush()
}

// AddTrend stores a dictionary entry and its values. The entry ID is
// assigned by the writer and returned.
func (w *EnergyModelWriter) AddTrend(d DictEntry, indexes []uint32, values []float64) (uint32, error) {
	payload, err := encodeBlock(w.enc, indexes, values)
	if err != nil {
		return 0, err
	}
	w.nextID++
	d.ID = w.nextID
	meta, err := json.Marshal(d)
	if err != nil {
		return 0, err
	}
	err = w.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dictKey(d.ID), meta); err != nil {
			return err
		}
		return txn.Set(dataKey(d.ID), payload)
	})
	if err != nil {
		return 0, fmt.Errorf("write trend %q: %w", d.TrendName(), err)
	}
	return d.ID, nil
}

// Close flushes and releases the database.
func (w *EnergyModelWriter) Close() error {
	w.enc.Close()
	return w.db.Close()
}

// splitUnits splits "Name [units]" into its parts.
func splitUnits(trend string) (string, string) {
	if !strings.HasSuffix(trend, "]") {
		return trend, ""
	}
	i := strings.LastIndex(trend, " [")
	if i <= 0 {
		return trend, ""
	}
	return trend[:i], trend[i+2 : len(trend)-1]
}

// ImportDelimited copies an energy-model delimited file into a new database
// in dir and returns the number of trends written.
func ImportDelimited(ctx context.Context, src *Delimited, dir string, logger *slog.Logger) (n int, err error) {
	if k := src.Kind(ctx); k != KindEnergyModel {
		return 0, fmt.Errorf("import %s: source is %s, want %s", src.Header(), k, KindEnergyModel)
	}
	trends := src.Trends(ctx)
	if len(trends) == 0 {
		return 0, fmt.Errorf("import %s: no trends", src.Header())
	}

	w, err := CreateEnergyModel(dir, logger)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	start := energyModelStart(src.opts.now())
	if err := w.SetTimes(HourlyTimes(start)); err != nil {
		return 0, err
	}

	for _, trend := range trends {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		s := src.TimestampSeries(ctx, trend)
		indexes := make([]uint32, s.Len())
		for i, ts := range s.Timestamps {
			indexes[i] = uint32(ts.Sub(start) / time.Hour)
		}
		name, unit := splitUnits(trend)
		if _, err := w.AddTrend(DictEntry{Name: name, Units: unit, Frequency: "Hourly"}, indexes, s.Values); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
