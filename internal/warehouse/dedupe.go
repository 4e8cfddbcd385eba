package warehouse

import (
	"fmt"
	"strings"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/tabular"
)

// pkKey renders a pk tuple into a comparable string key. Each value is
// tagged with its concrete Go type (see formatPKComponent), so two keys
// match only when their values also share Go types, e.g. an int64 from a
// type-aligned payload and an int64 read from the warehouse.
func pkKey(row tabular.Row, idxs []int) string {
	var b strings.Builder
	for i, idx := range idxs {
		if i > 0 {
			b.WriteByte(0x1f) // unit separator, never present in real data
		}
		b.WriteString(formatPKComponent(row[idx]))
	}
	return b.String()
}

// formatPKComponent renders a single pk column value as a stable string,
// tagging it with its concrete Go type so that, e.g., int64(1) and "1"
// never collide.
func formatPKComponent(v tabular.Value) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// filterExistingKeys performs an anti-join dedupe: it keeps
// only rows from payload whose pk tuple is not present in existing.
func filterExistingKeys(payload *tabular.Payload, pkColumns []string, existing map[string]bool) *tabular.Payload {
	idxs := make([]int, len(pkColumns))
	for i, c := range pkColumns {
		idxs[i] = payload.ColumnIndex(c)
	}

	out := &tabular.Payload{Columns: payload.Columns}
	for _, row := range payload.Rows {
		key := pkKey(row, idxs)
		if existing[key] {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// buildKeySet turns a payload of existing pk tuples (as read from the
// warehouse) into the lookup set filterExistingKeys needs.
func buildKeySet(existingPayload *tabular.Payload, pkColumns []string) map[string]bool {
	idxs := make([]int, len(pkColumns))
	for i, c := range pkColumns {
		idxs[i] = existingPayload.ColumnIndex(c)
	}
	set := make(map[string]bool, len(existingPayload.Rows))
	for _, row := range existingPayload.Rows {
		set[pkKey(row, idxs)] = true
	}
	return set
}

// partitionByExistence splits payload rows into those whose pk already
// exists in target (per existing) and those that are new, used by
// increment mode to decide UPDATE vs INSERT.
func partitionByExistence(payload *tabular.Payload, pkColumns []string, existing map[string]bool) (matched, unmatched *tabular.Payload) {
	idxs := make([]int, len(pkColumns))
	for i, c := range pkColumns {
		idxs[i] = payload.ColumnIndex(c)
	}
	matched = &tabular.Payload{Columns: payload.Columns}
	unmatched = &tabular.Payload{Columns: payload.Columns}
	for _, row := range payload.Rows {
		key := pkKey(row, idxs)
		if existing[key] {
			matched.Rows = append(matched.Rows, row)
		} else {
			unmatched.Rows = append(unmatched.Rows, row)
		}
	}
	return matched, unmatched
}
