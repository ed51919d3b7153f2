package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// listQuery appends the WHERE/ORDER/LIMIT tail for a ListOpts query. base
// must already contain a WHERE clause (use "WHERE 1=1" when unfiltered) and
// args the arguments it references.
func listQuery(base string, args []any, timeCol string, opts domain.ListOpts) (string, []any) {
	var sb strings.Builder
	sb.WriteString(base)
	argIdx := len(args) + 1

	if opts.Since != nil {
		fmt.Fprintf(&sb, " AND %s >= $%d", timeCol, argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}

	fmt.Fprintf(&sb, " ORDER BY %s DESC", timeCol)

	if opts.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return sb.String(), args
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// nullableUUID maps an empty id to SQL NULL.
func nullableUUID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
