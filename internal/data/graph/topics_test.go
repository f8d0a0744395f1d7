package graph

import (
	"strings"
	"testing"
)

// ORDER BY under a DISTINCT projection may only reference projected variables,
// so the topic query must sort on the WITH clause and keep the final RETURN
// plain. A RETURN DISTINCT followed by ORDER BY on the node variable is
// rejected by the server outright.
func TestContentByTopicQuerySortsBeforeProjecting(t *testing.T) {
	t.Parallel()

	if strings.Contains(contentByTopicQuery, "RETURN DISTINCT") {
		t.Fatalf("final RETURN must not carry DISTINCT:\n%s", contentByTopicQuery)
	}

	orderIdx := strings.Index(contentByTopicQuery, "ORDER BY")
	returnIdx := strings.Index(contentByTopicQuery, "RETURN")
	withIdx := strings.Index(contentByTopicQuery, "WITH DISTINCT")
	if withIdx < 0 || orderIdx < 0 || returnIdx < 0 {
		t.Fatalf("query missing expected clauses:\n%s", contentByTopicQuery)
	}
	if !(withIdx < orderIdx && orderIdx < returnIdx) {
		t.Fatalf("clauses must run WITH DISTINCT -> ORDER BY -> RETURN:\n%s", contentByTopicQuery)
	}

	// Every variable the ORDER BY touches must be projected by the WITH.
	withClause := contentByTopicQuery[withIdx:orderIdx]
	for _, v := range []string{"c", "rank"} {
		if !strings.Contains(withClause, v) {
			t.Fatalf("ORDER BY variable %q not projected by the WITH clause:\n%s", v, withClause)
		}
	}
	if !strings.Contains(contentByTopicQuery, "ORDER BY rank, c.timestamp DESC") {
		t.Fatalf("preference-first ordering lost:\n%s", contentByTopicQuery)
	}
	if !strings.Contains(contentByTopicQuery, "LIMIT $limit") {
		t.Fatalf("limit must apply before the projection:\n%s", contentByTopicQuery)
	}
}
