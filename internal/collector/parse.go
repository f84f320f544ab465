package collector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"AShareSentinel/internal/model"
)

var (
	errEmptyField = errors.New("empty field")

	hundred     = decimal.NewFromInt(100)
	tenThousand = decimal.NewFromInt(10000)
)

// chinaTZ is exchange time. A fixed zone avoids depending on tzdata.
var chinaTZ = time.FixedZone("CST", 8*3600)

// parseDecimal parses an upstream numeric field. Placeholders such as "-" or
// blanks are errors, never zero.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "--" {
		return decimal.Zero, errEmptyField
	}
	return decimal.NewFromString(s)
}

func parseNumber(s string) (float64, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// parseRaw parses a JSON number or a quoted number.
func parseRaw(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, errEmptyField
	}
	return parseDecimal(strings.Trim(string(raw), `"`))
}

// fields reads positional numeric fields and keeps the first error, so a
// parser can read a whole record and check once.
type fields struct {
	provider string
	op       string
	values   []string
	err      error
}

func newFields(provider, op string, values []string) *fields {
	return &fields{provider: provider, op: op, values: values}
}

func (f *fields) decimal(i int, name string) decimal.Decimal {
	if f.err != nil {
		return decimal.Zero
	}
	if i >= len(f.values) {
		f.err = model.Malformed(f.provider, f.op, "missing field %s (index %d of %d)", name, i, len(f.values))
		return decimal.Zero
	}
	d, err := parseDecimal(f.values[i])
	if err != nil {
		f.err = model.Malformed(f.provider, f.op, "field %s %q: %v", name, f.values[i], err)
		return decimal.Zero
	}
	return d
}

func (f *fields) float(i int, name string) float64 {
	return f.decimal(i, name).InexactFloat64()
}

// lots reads a volume reported in lots of 100 shares.
func (f *fields) lots(i int, name string) float64 {
	return f.decimal(i, name).Mul(hundred).InexactFloat64()
}

func (f *fields) str(i int, name string) string {
	if f.err != nil {
		return ""
	}
	if i >= len(f.values) {
		f.err = model.Malformed(f.provider, f.op, "missing field %s (index %d of %d)", name, i, len(f.values))
		return ""
	}
	return strings.TrimSpace(f.values[i])
}

// jsonFields reads named numeric fields from a JSON object.
type jsonFields struct {
	provider string
	op       string
	values   map[string]json.RawMessage
	err      error
}

func (f *jsonFields) decimal(key string) decimal.Decimal {
	if f.err != nil {
		return decimal.Zero
	}
	raw, ok := f.values[key]
	if !ok {
		f.err = model.Malformed(f.provider, f.op, "missing field %s", key)
		return decimal.Zero
	}
	d, err := parseRaw(raw)
	if err != nil {
		f.err = model.Malformed(f.provider, f.op, "field %s %s: %v", key, string(raw), err)
		return decimal.Zero
	}
	return d
}

func (f *jsonFields) float(key string) float64 {
	return f.decimal(key).InexactFloat64()
}

func (f *jsonFields) str(key string) string {
	if f.err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.values[key], &s); err != nil {
		f.err = model.Malformed(f.provider, f.op, "field %s: %v", key, err)
	}
	return strings.TrimSpace(s)
}

// parseDay parses "2006-01-02" in exchange time.
func parseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), chinaTZ)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// checkQuote rejects records that would otherwise surface as zero-filled data.
func checkQuote(provider string, q model.ProviderQuote) error {
	if q.Current <= 0 {
		return model.NewFetchError(provider, OpQuote, model.KindNotFound, errSuspended)
	}
	if q.PrevClose < 0 || q.High < q.Low {
		return model.Malformed(provider, OpQuote, "inconsistent prices high=%v low=%v prev=%v", q.High, q.Low, q.PrevClose)
	}
	return nil
}

// finishSeries trims to lookback and enforces the ordering invariant.
func finishSeries(provider string, s model.PriceSeries, lookback int) (model.PriceSeries, error) {
	if len(s.Bars) == 0 {
		return model.PriceSeries{}, model.NewFetchError(provider, OpSeries, model.KindNotFound, fmt.Errorf("no bars for %s", s.Symbol))
	}
	if err := s.Validate(); err != nil {
		return model.PriceSeries{}, model.Malformed(provider, OpSeries, "%v", err)
	}
	if lookback > 0 && len(s.Bars) > lookback {
		s.Bars = s.Bars[len(s.Bars)-lookback:]
	}
	return s, nil
}
