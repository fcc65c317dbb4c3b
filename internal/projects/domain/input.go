package domain

import (
	"math"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

// Input is a create or update request. A nil field was not supplied and must
// leave the stored value alone; a non-nil field was supplied, even if it
// points at an empty value.
type Input struct {
	Title          *string
	Description    *string
	StartDate      *string
	EndDate        *string
	Status         *string
	Budget         *float64
	ProjectManager *int64
	Client         *string
}

// ParseInput builds an Input from a decoded JSON object. Keys that are absent
// or null are treated as not supplied. Values are loosely typed: strings are
// accepted for numeric fields and numbers for string fields.
func ParseInput(body map[string]any) Input {
	var in Input
	in.Title = stringField(body, "title")
	in.Description = stringField(body, "description")
	in.StartDate = stringField(body, "start_date")
	in.EndDate = stringField(body, "end_date")
	in.Status = stringField(body, "status")
	in.Client = stringField(body, "client")

	if v, ok := present(body, "budget"); ok {
		f := CoerceFloat(v)
		in.Budget = &f
	}
	if v, ok := present(body, "project_manager"); ok {
		n := CoerceInt(v)
		in.ProjectManager = &n
	}
	return in
}

// numericPrefix matches the leading number of a string such as "1500 USD".
// Words like "NaN" or "Inf" do not match.
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// CoerceFloat converts v to a finite float64. Strings contribute their
// leading number; anything that is not numeric, or does not fit, becomes 0.
func CoerceFloat(v any) float64 {
	var f float64
	switch t := v.(type) {
	case string:
		f = cast.ToFloat64(numericPrefix.FindString(strings.TrimSpace(t)))
	case bool:
		if t {
			f = 1
		}
	default:
		f = cast.ToFloat64(v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// CoerceInt converts v to an int64, truncating fractions and clamping to the
// int64 range; anything that is not numeric becomes 0.
func CoerceInt(v any) int64 {
	switch t := v.(type) {
	case string:
		return clampInt(CoerceFloat(t))
	case float64:
		return clampInt(t)
	case float32:
		return clampInt(float64(t))
	case bool:
		if t {
			return 1
		}
		return 0
	}
	return cast.ToInt64(v)
}

func clampInt(f float64) int64 {
	switch {
	case math.IsNaN(f), math.IsInf(f, 0):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func present(body map[string]any, key string) (any, bool) {
	v, ok := body[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func stringField(body map[string]any, key string) *string {
	v, ok := present(body, key)
	if !ok {
		return nil
	}
	s := cast.ToString(v)
	return &s
}

// String returns a pointer to s, handy when building an Input by hand.
func String(s string) *string { return &s }

func Float(f float64) *float64 { return &f }

func Int(n int64) *int64 { return &n }
