package warehouse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/tabular"
)

// dateLayouts are tried in order when coercing a textual value into a
// date or timestamp column. ISO-8601 date and date-time cover every
// format the platform extractors emit.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// AlignPayload reorders and coerces payload's columns to schema's declared
// types and column order. It is a pure
// function of its inputs: it never touches the warehouse. Columns absent
// from schema are dropped with a returned warning list; columns absent
// from payload are appended with typed defaults.
//
// AlignPayload is idempotent: aligning an already-aligned payload against
// the same schema reproduces it unchanged.
func AlignPayload(payload *tabular.Payload, schema *tabular.Schema) (*tabular.Payload, []string, error) {
	var warnings []string
	out := tabular.NewPayload(schema.Names()...)

	dropped := map[string]bool{}
	for _, col := range payload.Columns {
		if _, ok := schema.ColumnByName(col); !ok {
			dropped[col] = true
			warnings = append(warnings, fmt.Sprintf("column %q not present in schema, dropped", col))
		}
	}

	for _, row := range payload.Rows {
		newRow := make(tabular.Row, len(schema.Columns))
		for i, cs := range schema.Columns {
			srcIdx := payload.ColumnIndex(cs.Name)
			var raw tabular.Value
			if srcIdx >= 0 {
				raw = row[srcIdx]
			}
			coerced, err := coerce(raw, cs)
			if err != nil {
				return nil, warnings, &SchemaMismatch{Column: cs.Name, Value: raw}
			}
			newRow[i] = coerced
		}
		out.Rows = append(out.Rows, newRow)
	}
	return out, warnings, nil
}

func coerce(raw tabular.Value, cs tabular.ColumnSchema) (tabular.Value, error) {
	switch cs.Type {
	case tabular.TypeInteger:
		return coerceInt(raw), nil
	case tabular.TypeFloating:
		return coerceFloat(raw), nil
	case tabular.TypeDate:
		return coerceTime(raw, true), nil
	case tabular.TypeTimestamp:
		return coerceTime(raw, false), nil
	case tabular.TypeBoolean:
		return coerceBool(raw), nil
	case tabular.TypeString:
		return coerceString(raw), nil
	default:
		return raw, nil
	}
}

func isNaNish(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "nat", "none", "null":
		return true
	}
	return false
}

// coerceInt maps empty string, "nan"/"NaN", and null to 0 for an integer
// target.
func coerceInt(raw tabular.Value) tabular.Value {
	if raw == nil {
		return int64(0)
	}
	switch v := raw.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		if math.IsNaN(v) {
			return int64(0)
		}
		return int64(v)
	case string:
		if isNaNish(v) {
			return int64(0)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return int64(0)
		}
		return int64(f)
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	default:
		return int64(0)
	}
}

func coerceFloat(raw tabular.Value) tabular.Value {
	if raw == nil {
		return float64(0)
	}
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) {
			return float64(0)
		}
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		if isNaNish(v) {
			return float64(0)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return float64(0)
		}
		return f
	default:
		return float64(0)
	}
}

func coerceBool(raw tabular.Value) tabular.Value {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil
		}
		return b
	default:
		return raw
	}
}

// coerceTime parses raw into a date or timestamp; dateOnly truncates the
// time component. Invalid input maps to null.
func coerceTime(raw tabular.Value, dateOnly bool) tabular.Value {
	if raw == nil {
		return nil
	}
	var t time.Time
	switch v := raw.(type) {
	case time.Time:
		t = v
	case string:
		if isNaNish(v) {
			return nil
		}
		parsed, ok := parseAnyDate(v)
		if !ok {
			return nil
		}
		t = parsed
	default:
		return nil
	}
	if dateOnly {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	return t
}

func parseAnyDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func coerceString(raw tabular.Value) tabular.Value {
	if raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
