package journal

import (
	"fmt"
	"strings"
	"time"
)

// whereClause renders filter as a SQL WHERE clause. placeholder returns the
// bind marker for the n-th argument (1-based), since sqlite and postgres
// spell them differently. toTime converts the Since bound into the driver's
// column representation.
func whereClause(filter Filter, placeholder func(n int) string, toTime func(time.Time) any) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, placeholder(len(args))))
	}

	if filter.Outcome != "" {
		add("outcome = %s", filter.Outcome)
	}
	if filter.DocID != "" {
		add("doc_id = %s", filter.DocID)
	}
	if !filter.Since.IsZero() {
		add("started_at >= %s", toTime(filter.Since))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
