package legacy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
)

// DecodeError reports a document that cannot become a draft.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return "legacy import: " + e.Err.Error()
	}
	return fmt.Sprintf("legacy import: %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	ErrNotObject = errors.New("expected a JSON object")
	ErrNotArray  = errors.New("expected a JSON array")
	ErrBadDate   = errors.New("unrecognized date")
	ErrTrailing  = errors.New("unexpected data after the JSON document")
)

// parseFunc decodes one source value into rec. matched=false means the value
// had the wrong shape and the next accepted key should be tried.
type parseFunc[T any] func(rec *T, path string, v *jason.Value) (matched bool, err error)

type field[T any] struct {
	name  string
	keys  []string
	parse parseFunc[T]
}

type table[T any] []field[T]

// decode walks the table over obj. Nulls count as absent. Keys not listed in
// any field are rendered into the returned unknown map.
func (tb table[T]) decode(obj *jason.Object, path string, rec *T) (map[string]string, error) {
	m := obj.Map()
	known := make(map[string]struct{}, len(m))
	for _, f := range tb {
		for _, k := range f.keys {
			known[k] = struct{}{}
		}
		for _, k := range f.keys {
			v, ok := m[k]
			if !ok || isNull(v) {
				continue
			}
			matched, err := f.parse(rec, path+"."+k, v)
			if err != nil {
				return nil, err
			}
			if matched {
				break
			}
		}
	}

	unknown := map[string]string{}
	for k, v := range m {
		if _, ok := known[k]; !ok {
			unknown[k] = Render(v)
		}
	}
	return unknown, nil
}

// ---- parser builders ----

func text[T any](set func(rec *T, s string)) parseFunc[T] {
	return func(rec *T, _ string, v *jason.Value) (bool, error) {
		s, ok := scalarText(v)
		if !ok {
			return false, nil
		}
		set(rec, s)
		return true, nil
	}
}

func integer[T any](set func(rec *T, n int)) parseFunc[T] {
	return func(rec *T, _ string, v *jason.Value) (bool, error) {
		n, ok := intValue(v)
		if !ok {
			return false, nil
		}
		set(rec, n)
		return true, nil
	}
}

// identifier keeps only values that parse as UUIDs; anything else is dropped
// so the builder assigns a fresh id.
func identifier[T any](valid func(string) bool, set func(rec *T, id string)) parseFunc[T] {
	return func(rec *T, _ string, v *jason.Value) (bool, error) {
		s, err := v.String()
		if err != nil {
			return false, nil
		}
		s = strings.TrimSpace(s)
		if !valid(s) {
			return false, nil
		}
		set(rec, strings.ToLower(s))
		return true, nil
	}
}

func date[T any](loc *time.Location, set func(rec *T, t time.Time)) parseFunc[T] {
	return func(rec *T, path string, v *jason.Value) (bool, error) {
		t, err := parseDate(v, loc)
		if err != nil {
			return false, &DecodeError{Path: path, Err: err}
		}
		set(rec, t)
		return true, nil
	}
}

// fallbackLayout is the local-time format older exports used.
const fallbackLayout = "2006-01-02 15:04:05"

// parseDate accepts epoch seconds (fractional allowed), RFC 3339 with offset,
// or fallbackLayout interpreted in loc.
func parseDate(v *jason.Value, loc *time.Location) (time.Time, error) {
	if n, err := v.Number(); err == nil {
		f, err := n.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s", ErrBadDate, n)
		}
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec), nil
	}
	s, err := v.String()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrBadDate, Render(v))
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(fallbackLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}
