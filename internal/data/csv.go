// Package data loads, checks and prepares OHLC bar series for a backtest.
package data

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/boxsim/internal/core"
)

// timeLayouts are tried in order when parsing a timestamp cell.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006-01-02",
	"2006.01.02",
}

// LoadOptions tune CSV loading.
type LoadOptions struct {
	Symbol   string
	Interval string
	// Location for timestamps without a zone. Nil means UTC.
	Location *time.Location
}

// LoadCSVFile opens path and loads it with LoadCSV.
func LoadCSVFile(path string, opts LoadOptions) ([]core.OHLCV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bars, err := LoadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return bars, nil
}

// LoadCSV reads OHLC bars from r. The first row is a header naming the
// columns; names are case-insensitive and may be wrapped in angle brackets as
// MetaTrader exports them. Timestamps come from a "datetime" (or "time")
// column, or from separate "date" and "time" columns. Open, high, low and
// close are required, volume (or tick_volume) is optional. Tab separated
// files are detected from the header. Bars are returned sorted by time.
func LoadCSV(r io.Reader, opts LoadOptions) ([]core.OHLCV, error) {
	br := bufio.NewReader(r)
	comma, err := sniffDelimiter(br)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var bars []core.OHLCV
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if isBlank(row) {
			continue
		}

		bar, err := cols.parse(row, loc)
		if err != nil {
			return nil, core.WrapError(core.ErrInvalidBar, fmt.Errorf("line %d: %w", line, err))
		}
		bar.Symbol = opts.Symbol
		bar.Interval = opts.Interval
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, core.ErrNoData
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

func sniffDelimiter(br *bufio.Reader) (rune, error) {
	head, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("read header: %w", err)
	}
	first := string(head)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	if strings.Contains(first, "\t") && !strings.Contains(first, ",") {
		return '\t', nil
	}
	return ',', nil
}

type columns struct {
	datetime, date, clock  int
	open, high, low, close int
	volume                 int
}

func mapColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		name = strings.ToLower(name)
		name = strings.TrimSuffix(strings.TrimPrefix(name, "<"), ">")
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	find := func(names ...string) int {
		for _, n := range names {
			if i, ok := idx[n]; ok {
				return i
			}
		}
		return -1
	}

	c := columns{
		datetime: find("datetime", "timestamp"),
		date:     find("date"),
		clock:    find("time"),
		open:     find("open"),
		high:     find("high"),
		low:      find("low"),
		close:    find("close"),
		volume:   find("volume", "tick_volume", "tickvol", "vol"),
	}
	if c.datetime < 0 && c.date < 0 && c.clock >= 0 {
		c.datetime, c.clock = c.clock, -1
	}

	var missing []string
	if c.datetime < 0 && c.date < 0 {
		missing = append(missing, "datetime")
	}
	for name, i := range map[string]int{"open": c.open, "high": c.high, "low": c.low, "close": c.close} {
		if i < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return c, core.WrapError(core.ErrMissingColumn, fmt.Errorf("missing columns: %s", strings.Join(missing, ", ")))
	}
	return c, nil
}

func (c columns) parse(row []string, loc *time.Location) (core.OHLCV, error) {
	var b core.OHLCV

	var ts string
	switch {
	case c.datetime >= 0:
		ts = cell(row, c.datetime)
	case c.clock >= 0:
		ts = cell(row, c.date) + " " + cell(row, c.clock)
	default:
		ts = cell(row, c.date)
	}
	t, err := parseTime(ts, loc)
	if err != nil {
		return b, err
	}
	b.Time = t

	fields := []struct {
		name string
		col  int
		dst  *float64
	}{
		{"open", c.open, &b.Open},
		{"high", c.high, &b.High},
		{"low", c.low, &b.Low},
		{"close", c.close, &b.Close},
		{"volume", c.volume, &b.Volume},
	}
	for _, f := range fields {
		if f.col < 0 {
			continue
		}
		raw := cell(row, f.col)
		if raw == "" && f.name == "volume" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return b, fmt.Errorf("bad %s %q: %w", f.name, raw, err)
		}
		*f.dst = v
	}
	return b, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
