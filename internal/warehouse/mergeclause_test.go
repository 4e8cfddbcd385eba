package warehouse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdents(t *testing.T) {
	assert.Equal(t, []string{"[a]", "[b]"}, quoteIdents([]string{"a", "b"}))
}

func TestPrefixIdents(t *testing.T) {
	assert.Equal(t, []string{"s.[a]", "s.[b]"}, prefixIdents("s", []string{"a", "b"}))
}

func TestSubtractRemovesPKColumnsFromNonPKSet(t *testing.T) {
	all := []string{"id", "name", "clicks", "impressions"}
	assert.Equal(t, []string{"name", "clicks", "impressions"}, subtract(all, []string{"id"}))
}

func TestSubtractPreservesOrderAndHandlesNoOverlap(t *testing.T) {
	all := []string{"a", "b", "c"}
	assert.Equal(t, all, subtract(all, []string{"z"}))
}

func TestJoinOnBuildsPKEqualityPredicate(t *testing.T) {
	on := joinOn("t", "s", []string{"campaign_id", "date"})
	assert.Equal(t, "t.[campaign_id] = s.[campaign_id] AND t.[date] = s.[date]", on)
}

func TestJoinSetBuildsAssignmentList(t *testing.T) {
	set := joinSet("t", "s", []string{"clicks", "impressions"})
	assert.Equal(t, "t.[clicks] = s.[clicks], t.[impressions] = s.[impressions]", set)
}

// TestUpsertMergeClauseShape exercises the same helper composition
// loadUpsert uses to build its MERGE statement, asserting the generated
// clauses stay consistent for a two-column pk with mixed non-pk columns.
func TestUpsertMergeClauseShape(t *testing.T) {
	columns := []string{"campaign_id", "date", "clicks", "impressions"}
	pk := []string{"campaign_id", "date"}
	nonPK := subtract(columns, pk)

	onClause := joinOn("t", "s", pk)
	setClause := joinSet("t", "s", nonPK)
	insertCols := strings.Join(quoteIdents(columns), ", ")
	insertVals := strings.Join(prefixIdents("s", columns), ", ")

	assert.Equal(t, "t.[campaign_id] = s.[campaign_id] AND t.[date] = s.[date]", onClause)
	assert.Equal(t, "t.[clicks] = s.[clicks], t.[impressions] = s.[impressions]", setClause)
	assert.Equal(t, "[campaign_id], [date], [clicks], [impressions]", insertCols)
	assert.Equal(t, "s.[campaign_id], s.[date], s.[clicks], s.[impressions]", insertVals)
}

// TestIncrementUpdateClauseShape exercises the additive-UPDATE clause
// loadIncrement builds for matched rows: each increment column becomes
// t.[c] = t.[c] + s.[c], with the touched-timestamp column appended last.
func TestIncrementUpdateClauseShape(t *testing.T) {
	pk := []string{"campaign_id"}
	incrementColumns := []string{"clicks", "spend"}

	onClause := joinOn("t", "s", pk)
	var incSets []string
	for _, c := range incrementColumns {
		incSets = append(incSets, "t.["+c+"] = t.["+c+"] + s.["+c+"]")
	}
	incSets = append(incSets, "t.[last_updated_date] = SYSUTCDATETIME()")

	assert.Equal(t, "t.[campaign_id] = s.[campaign_id]", onClause)
	assert.Equal(t, []string{
		"t.[clicks] = t.[clicks] + s.[clicks]",
		"t.[spend] = t.[spend] + s.[spend]",
		"t.[last_updated_date] = SYSUTCDATETIME()",
	}, incSets)
}
