package legacy

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/antonholmquist/jason"
)

func isNull(v *jason.Value) bool {
	return v == nil || v.Null() == nil
}

// scalarText returns strings verbatim and renders numbers and booleans.
// Objects, arrays and null do not count as text.
func scalarText(v *jason.Value) (string, bool) {
	if s, err := v.String(); err == nil {
		return s, true
	}
	if n, err := v.Number(); err == nil {
		return formatNumber(n), true
	}
	if b, err := v.Boolean(); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

// intValue accepts integral numbers and numeric strings ("7", " 14 ").
func intValue(v *jason.Value) (int, bool) {
	if n, err := v.Number(); err == nil {
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		if err == nil && f == math.Trunc(f) && math.Abs(f) < math.MaxInt32 {
			return int(f), true
		}
		return 0, false
	}
	if s, err := v.String(); err == nil {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// Render turns any JSON value into the human-readable text shown for unknown
// fields: strings verbatim, numbers with at most six fraction digits, objects
// as {k: v, ...} with sorted keys, arrays as [a, b].
func Render(v *jason.Value) string {
	if isNull(v) {
		return "null"
	}
	if s, ok := scalarText(v); ok {
		return s
	}
	if obj, err := v.Object(); err == nil {
		m := obj.Map()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+Render(m[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	if arr, err := v.Array(); err == nil {
		parts := make([]string, 0, len(arr))
		for _, e := range arr {
			parts = append(parts, Render(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "null"
}

func formatNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	s := strconv.FormatFloat(f, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		s = "0"
	}
	return s
}
