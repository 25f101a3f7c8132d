// Package sqllimit decides which SQL statement an export should run and how
// many rows of its result belong to the user.
package sqllimit

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// StatementParser extracts the row limit of the final statement of a SQL
// script. The dialect is the driver name from the query record, so
// implementations backed by a real parser can branch on it.
type StatementParser interface {
	LimitValue(sql string, dialect string) (value int64, found bool, err error)
}

// tailParser recognizes a LIMIT clause at the very end of the last
// statement. It deliberately does not parse SQL: a trailing `LIMIT n`,
// `LIMIT m, n` or `LIMIT n OFFSET m` is what the upstream runner appends,
// anything more exotic counts as having no detectable limit.
type tailParser struct{}

var limitTailPattern = regexp.MustCompile(`(?is)\sLIMIT\s+(?:\d+\s*,\s*)?(\d+)(?:\s+OFFSET\s+\d+)?\s*;?\s*$`)

func (tailParser) LimitValue(sql string, _ string) (int64, bool, error) {
	match := limitTailPattern.FindStringSubmatch(lastStatement(sql))
	if match == nil {
		return 0, false, nil
	}

	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "malformed limit value %q", match[1])
	}

	return value, true, nil
}

// lastStatement returns the final non-empty statement of a script.
func lastStatement(sql string) string {
	stmts := strings.Split(sql, ";")
	for i := len(stmts) - 1; i >= 0; i-- {
		if strings.TrimSpace(stmts[i]) != "" {
			return stmts[i]
		}
	}

	return sql
}
