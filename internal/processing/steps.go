package processing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/logger"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/tabular"
)

func registerBuiltinSteps(r *Registry) {
	r.Register("add_company", addCompany)
	r.Register("add_row_loaded_date", addRowLoadedDate)
	r.Register("extract_id_from_urn", extractIDFromURN)
	r.Register("build_date_field", buildDateField)
	r.Register("convert_unix_timestamp", convertUnixTimestamp)
	r.Register("rename_column", renameColumn)
	r.Register("replace_nan_with_zero", replaceNaNWithZero)
	r.Register("convert_nat_to_null", convertNaTToNull)
	r.Register("modify_urn_account", modifyURNAccount)
	r.Register("response_decoration", responseDecoration)
	r.Register("aggregate_by_entity", aggregateByEntity)
	r.Register("convert_costs", convertCosts)
	r.Register("extract_nested_actions", extractNestedActions)
}

func stringSliceParam(params map[string]interface{}, key string) []string {
	raw, ok := params[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fmt.Sprintf("%v", item)
		}
		return out
	default:
		return nil
	}
}

func stringParam(params map[string]interface{}, key, def string) string {
	if raw, ok := params[key]; ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return def
}

func mapStringParam(params map[string]interface{}, key string) map[string]string {
	raw, ok := params[key]
	if !ok {
		return nil
	}
	out := map[string]string{}
	switch v := raw.(type) {
	case map[string]interface{}:
		for k, val := range v {
			out[k] = fmt.Sprintf("%v", val)
		}
	case map[string]string:
		for k, val := range v {
			out[k] = val
		}
	}
	return out
}

// addCompany derives a "company" column from an "account" (or configured)
// column via a caller-supplied account_id -> company_id mapping (grounded
// on strategies.py's AddCompanyStrategy; the mapping itself is the caller's
// CompanyMappingService equivalent, passed in as params["mapping"]).
func addCompany(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	accountCol := stringParam(params, "account_column", "account")
	mapping := mapStringParam(params, "mapping")
	defaultCompany := stringParam(params, "default_company", "1")

	idx := payload.ColumnIndex(accountCol)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", accountCol)
	}

	out := payload.Clone()
	out.Columns = append(out.Columns, "company")
	for i, row := range out.Rows {
		key := fmt.Sprintf("%v", payload.Rows[i][idx])
		companyID, ok := mapping[key]
		if !ok {
			companyID = defaultCompany
		}
		out.Rows[i] = append(row, companyID)
	}
	return out, nil
}

// addRowLoadedDate appends a timestamp column carrying the current wall
// time (strategies.py AddRowLoadedDateStrategy).
func addRowLoadedDate(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	out := payload.Clone()
	out.Columns = append(out.Columns, "row_loaded_date")
	now := tabular.Now()
	for i, row := range out.Rows {
		out.Rows[i] = append(row, now)
	}
	return out, nil
}

var urnPattern = regexp.MustCompile(`:(\d+)$`)

// extractIDFromURN replaces `ns:a:b:c:N` values in named columns with
// just `N` (strategies.py ExtractIDFromURNStrategy).
func extractIDFromURN(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	columns := stringSliceParam(params, "columns")
	out := payload.Clone()
	for _, col := range columns {
		idx := out.ColumnIndex(col)
		if idx < 0 {
			logger.Warnf("extract_id_from_urn: column %q not found, skipping", col)
			continue
		}
		for _, row := range out.Rows {
			if row[idx] == nil {
				continue
			}
			s := fmt.Sprintf("%v", row[idx])
			if m := urnPattern.FindStringSubmatch(s); m != nil {
				row[idx] = m[1]
			}
		}
	}
	return out, nil
}

// buildDateField combines `<prefix>_year`, `<prefix>_month`, `<prefix>_day`
// columns into a single date column (strategies.py BuildDateFieldStrategy,
// generalized from LinkedIn's dateRange_start_* naming).
func buildDateField(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	prefix := stringParam(params, "prefix", "dateRange_start")
	target := stringParam(params, "target", "date")

	yearIdx := payload.ColumnIndex(prefix + "_year")
	monthIdx := payload.ColumnIndex(prefix + "_month")
	dayIdx := payload.ColumnIndex(prefix + "_day")
	if yearIdx < 0 || monthIdx < 0 || dayIdx < 0 {
		logger.Warnf("build_date_field: missing component columns for prefix %q, skipping", prefix)
		return payload.Clone(), nil
	}

	newCols := make([]string, 0, len(payload.Columns)+1)
	drop := map[int]bool{yearIdx: true, monthIdx: true, dayIdx: true}
	for i, c := range payload.Columns {
		if !drop[i] {
			newCols = append(newCols, c)
		}
	}
	newCols = append(newCols, target)

	out := &tabular.Payload{Columns: newCols}
	for _, row := range payload.Rows {
		newRow := make(tabular.Row, 0, len(newCols))
		for i, v := range row {
			if !drop[i] {
				newRow = append(newRow, v)
			}
		}
		dateStr := fmt.Sprintf("%v-%v-%v", row[yearIdx], row[monthIdx], row[dayIdx])
		t, err := time.Parse("2006-1-2", dateStr)
		if err != nil {
			newRow = append(newRow, nil)
		} else {
			newRow = append(newRow, t)
		}
		out.Rows = append(out.Rows, newRow)
	}
	return out, nil
}

// convertUnixTimestamp converts named millisecond-epoch columns to
// timestamps (strategies.py ConvertUnixTimestampStrategy).
func convertUnixTimestamp(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	columns := stringSliceParam(params, "columns")
	out := payload.Clone()
	for _, col := range columns {
		idx := out.ColumnIndex(col)
		if idx < 0 {
			logger.Warnf("convert_unix_timestamp: column %q not found, skipping", col)
			continue
		}
		for _, row := range out.Rows {
			ms, ok := toInt64(row[idx])
			if !ok {
				row[idx] = nil
				continue
			}
			row[idx] = time.UnixMilli(ms).UTC()
		}
	}
	return out, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case float64:
		return int64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}

// renameColumn renames columns per an {old: new} mapping, ignoring keys
// that do not exist (strategies.py RenameColumnStrategy).
func renameColumn(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	mapping := mapStringParam(params, "renaming")
	out := payload.Clone()
	for i, c := range out.Columns {
		if newName, ok := mapping[c]; ok {
			out.Columns[i] = newName
		}
	}
	return out, nil
}

// replaceNaNWithZero replaces null values in named numeric columns with 0
// (strategies.py ReplaceNaNWithZeroStrategy).
func replaceNaNWithZero(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	columns := stringSliceParam(params, "columns")
	out := payload.Clone()
	for _, col := range columns {
		idx := out.ColumnIndex(col)
		if idx < 0 {
			continue
		}
		for _, row := range out.Rows {
			if row[idx] == nil {
				row[idx] = float64(0)
			}
			if f, ok := row[idx].(float64); ok && f != f { // NaN != NaN
				row[idx] = float64(0)
			}
		}
	}
	return out, nil
}

// convertNaTToNull nulls out unset timestamp sentinels in named columns
// (strategies.py ConvertNaTToNanStrategy, renamed since the Go payload
// model represents "unset time" the same way it represents any other
// null: as a nil cell, not a pandas NaT sentinel).
func convertNaTToNull(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	columns := stringSliceParam(params, "columns")
	out := payload.Clone()
	for _, col := range columns {
		idx := out.ColumnIndex(col)
		if idx < 0 {
			continue
		}
		for _, row := range out.Rows {
			if s, ok := row[idx].(string); ok && (s == "" || strings.EqualFold(s, "NaT")) {
				row[idx] = nil
			}
			if t, ok := row[idx].(time.Time); ok && t.IsZero() {
				row[idx] = nil
			}
		}
	}
	return out, nil
}

// modifyURNAccount extracts the account id from an "account" column's
// `urn:li:sponsoredAccount:N` value (strategies.py ModifyURNAccountStrategy).
func modifyURNAccount(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	const prefix = "urn:li:sponsoredAccount:"
	idx := payload.ColumnIndex("account")
	if idx < 0 {
		logger.Warnf("modify_urn_account: column \"account\" not found, skipping")
		return payload.Clone(), nil
	}
	out := payload.Clone()
	for _, row := range out.Rows {
		if row[idx] == nil {
			continue
		}
		s := fmt.Sprintf("%v", row[idx])
		if strings.Contains(s, prefix) {
			row[idx] = strings.TrimPrefix(s, prefix)
		}
	}
	return out, nil
}

var digitsPattern = regexp.MustCompile(`\d+`)

// responseDecoration lifts a numeric id out of a URN-shaped field, either
// replacing it in place or into a new column (strategies.py
// ResponseDecorationStrategy).
func responseDecoration(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	field := stringParam(params, "field", "")
	newCol := stringParam(params, "new_col_name", "")
	if field == "" {
		return nil, fmt.Errorf("response_decoration: field is required")
	}
	idx := payload.ColumnIndex(field)
	if idx < 0 {
		logger.Warnf("response_decoration: column %q not found, skipping", field)
		return payload.Clone(), nil
	}

	out := payload.Clone()
	extracted := make(tabular.Row, len(out.Rows))
	for i, row := range out.Rows {
		if row[idx] == nil {
			extracted[i] = nil
			continue
		}
		s := fmt.Sprintf("%v", row[idx])
		if m := digitsPattern.FindString(s); m != "" {
			extracted[i] = m
		} else {
			extracted[i] = row[idx]
		}
	}

	if newCol == "" {
		for i, row := range out.Rows {
			row[idx] = extracted[i]
		}
		return out, nil
	}

	renamed := &tabular.Payload{Columns: append([]string{}, out.Columns...)}
	renamed.Columns[idx] = newCol
	renamed.Rows = out.Rows
	for i, row := range renamed.Rows {
		row[idx] = extracted[i]
	}
	return renamed, nil
}

// aggregateByEntity groups rows by entity_columns and sums metric_columns,
// reducing many rows per entity to one. When entity_columns is omitted it
// falls back to every id-like column (named "id" or ending in "_id");
// when metric_columns is omitted it falls back to every numeric column
// not already used for grouping.
func aggregateByEntity(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	entityCols := stringSliceParam(params, "entity_columns")
	metricCols := stringSliceParam(params, "metric_columns")
	if len(entityCols) == 0 {
		entityCols = autoDetectIDColumns(payload)
	}
	if len(entityCols) == 0 {
		return nil, fmt.Errorf("aggregate_by_entity: entity_columns is required and no id-like column could be auto-detected")
	}
	if len(metricCols) == 0 {
		metricCols = autoDetectNumericColumns(payload, entityCols)
	}

	entityIdx := make([]int, len(entityCols))
	for i, c := range entityCols {
		entityIdx[i] = payload.ColumnIndex(c)
	}
	metricIdx := make([]int, len(metricCols))
	for i, c := range metricCols {
		metricIdx[i] = payload.ColumnIndex(c)
	}

	type bucket struct {
		key  tabular.Row
		sums []float64
	}
	order := []string{}
	buckets := map[string]*bucket{}

	for _, row := range payload.Rows {
		keyParts := make([]string, len(entityIdx))
		keyVals := make(tabular.Row, len(entityIdx))
		for i, idx := range entityIdx {
			keyVals[i] = row[idx]
			keyParts[i] = fmt.Sprintf("%v", row[idx])
		}
		key := strings.Join(keyParts, "\x1f")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: keyVals, sums: make([]float64, len(metricIdx))}
			buckets[key] = b
			order = append(order, key)
		}
		for i, idx := range metricIdx {
			if f, ok := toFloat64(row[idx]); ok {
				b.sums[i] += f
			}
		}
	}

	out := tabular.NewPayload(append(append([]string{}, entityCols...), metricCols...)...)
	for _, key := range order {
		b := buckets[key]
		row := make(tabular.Row, 0, len(entityCols)+len(metricCols))
		row = append(row, b.key...)
		for _, s := range b.sums {
			row = append(row, s)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// autoDetectIDColumns returns every column named "id" or ending in "_id",
// in payload column order, for use as an aggregate_by_entity grouping key
// when entity_columns is not configured.
func autoDetectIDColumns(payload *tabular.Payload) []string {
	var cols []string
	for _, c := range payload.Columns {
		lower := strings.ToLower(c)
		if lower == "id" || strings.HasSuffix(lower, "_id") {
			cols = append(cols, c)
		}
	}
	return cols
}

// autoDetectNumericColumns returns every column, other than those in
// exclude, whose first-row value parses as a float, for use as
// aggregate_by_entity's summed metrics when metric_columns is not
// configured.
func autoDetectNumericColumns(payload *tabular.Payload, exclude []string) []string {
	if len(payload.Rows) == 0 {
		return nil
	}
	skip := map[string]bool{}
	for _, c := range exclude {
		skip[c] = true
	}
	first := payload.Rows[0]
	var cols []string
	for i, c := range payload.Columns {
		if skip[c] {
			continue
		}
		if _, ok := toFloat64(first[i]); ok {
			cols = append(cols, c)
		}
	}
	return cols
}

const microsDivisor = 1_000_000.0

// convertCosts divides named columns by 1,000,000 to convert Google's
// "micros" units into natural currency values (grounded on Google Ads'
// costMicros field, generalized from GoogleRenameColumnsStrategy's
// column-naming section in strategies.py).
func convertCosts(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	columns := stringSliceParam(params, "columns")
	out := payload.Clone()
	for _, col := range columns {
		idx := out.ColumnIndex(col)
		if idx < 0 {
			continue
		}
		for _, row := range out.Rows {
			f, ok := toFloat64(row[idx])
			if !ok {
				continue
			}
			row[idx] = f / microsDivisor
		}
	}
	return out, nil
}

// extractNestedActions flattens an array-of-objects column (e.g. Facebook
// Insights' "actions": [{action_type, value}, ...]) into a long-form
// table with one row per action_type (supplemented: Facebook's actions
// breakdown is referenced by the original platform pipelines but not
// implemented as a standalone strategy class; this generalizes that
// inline flattening into a registered step).
func extractNestedActions(payload *tabular.Payload, params map[string]interface{}) (*tabular.Payload, error) {
	column := stringParam(params, "column", "actions")
	typeKey := stringParam(params, "type_key", "action_type")
	valueKey := stringParam(params, "value_key", "value")
	valueColumn := stringParam(params, "value_column", "action_value")

	idx := payload.ColumnIndex(column)
	if idx < 0 {
		logger.Warnf("extract_nested_actions: column %q not found, skipping", column)
		return payload.Clone(), nil
	}

	carryCols := make([]string, 0, len(payload.Columns))
	carryIdx := make([]int, 0, len(payload.Columns))
	for i, c := range payload.Columns {
		if i == idx {
			continue
		}
		carryCols = append(carryCols, c)
		carryIdx = append(carryIdx, i)
	}

	out := tabular.NewPayload(append(append([]string{}, carryCols...), typeKey, valueColumn)...)
	for _, row := range payload.Rows {
		actions, ok := asActionMaps(row[idx])
		if !ok || len(actions) == 0 {
			continue
		}
		for _, action := range actions {
			newRow := make(tabular.Row, 0, len(carryCols)+2)
			for _, ci := range carryIdx {
				newRow = append(newRow, row[ci])
			}
			newRow = append(newRow, action[typeKey], action[valueKey])
			out.Rows = append(out.Rows, newRow)
		}
	}
	return out, nil
}

// asActionMaps normalizes a nested-actions cell into []map[string]interface{}.
// It accepts the same shape encoding/json.Unmarshal produces for a JSON
// array of objects ([]interface{} of map[string]interface{}) as well as
// the already-typed []map[string]interface{} form, so a step configured
// against a freshly-decoded API payload does not silently no-op.
func asActionMaps(v interface{}) ([]map[string]interface{}, bool) {
	switch actions := v.(type) {
	case []map[string]interface{}:
		return actions, true
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(actions))
		for _, item := range actions {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	default:
		return nil, false
	}
}
