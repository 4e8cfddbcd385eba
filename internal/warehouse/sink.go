// Package warehouse implements the bulk-load sink that persists tabular
// payloads into the analytical warehouse under the load-mode semantics
// (append, replace, upsert, increment) described by the table configuration.
package warehouse

import (
	"context"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/tabular"
)

// LoadMode selects how a payload is combined into its target table.
type LoadMode string

const (
	Append    LoadMode = "append"
	Replace   LoadMode = "replace"
	Upsert    LoadMode = "upsert"
	Increment LoadMode = "increment"
)

// LoadOptions carries the per-table configuration a Load call needs beyond
// the payload and target table name itself.
type LoadOptions struct {
	Mode             LoadMode
	PKColumns        []string
	IncrementColumns []string
	// MaxDedupeRead bounds how many existing pk tuples the append+pk path
	// pulls into memory; a target holding more than this fails the load.
	MaxDedupeRead int
	// TestModeSuffix opts this table into test-mode isolation: while the
	// sink is in test mode, only tables with this set are written (to
	// their suffixed physical name); others are skipped.
	TestModeSuffix bool
}

// Sink is the warehouse's public contract. One Sink instance is shared
// by all platform pipelines that share a warehouse; internally it must
// serialize writes to the same target table across concurrent callers.
type Sink interface {
	// Load type-aligns payload to table's schema and combines it under
	// opts.Mode, returning the number of rows inserted or updated.
	Load(ctx context.Context, payload *tabular.Payload, table string, opts LoadOptions) (int64, error)
	// Query runs a read-only statement and returns its result as a payload.
	Query(ctx context.Context, sql string, args ...interface{}) (*tabular.Payload, error)
	TableExists(ctx context.Context, table string) (bool, error)
	Close() error
}
