package sqllimit

import (
	"regexp"

	"github.com/querylab/workspace-export/internal/queryrecord"

	"github.com/pkg/errors"
)

var limitStripPattern = regexp.MustCompile(`(?i)\s+LIMIT\s+\d+(?:\s*,\s*\d+|\s+OFFSET\s+\d+)?(\s*;?\s*)$`)

// Resolver picks the SQL statement to export and the row cap its result
// must be truncated to.
type Resolver struct {
	parser StatementParser
}

// NewResolver builds a resolver around the given parser. A nil parser falls
// back to trailing-clause recognition.
func NewResolver(parser StatementParser) *Resolver {
	if parser == nil {
		parser = tailParser{}
	}

	return &Resolver{parser: parser}
}

// Resolve returns the SQL to replay and the number of user-visible rows the
// result should be capped at (nil when uncapped).
//
// A record with a curated SELECT statement is returned verbatim and
// uncapped. Otherwise the executed SQL is inspected for a trailing LIMIT;
// when the limiting factor says the upstream runner appended an extra probe
// row, the detected value is decremented by one.
func (r *Resolver) Resolve(rec *queryrecord.Record) (string, *int64, error) {
	if rec.SelectSQL != "" {
		return rec.SelectSQL, nil, nil
	}

	sql := rec.ExecutedSQL

	value, found, err := r.parser.LimitValue(sql, rec.Database.Driver)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to detect the query limit")
	}
	if !found {
		return sql, nil, nil
	}

	// A LIMIT 0 statement carries no probe row to remove, the cap must not
	// go negative.
	if rec.LimitingFactor.Probed() && value > 0 {
		value--
	}

	return sql, &value, nil
}

// StreamingSQL returns the statement a streaming export should run: the
// curated SELECT untouched, or the executed SQL with its trailing LIMIT
// stripped so the full result set is materialized.
func (r *Resolver) StreamingSQL(rec *queryrecord.Record) (string, error) {
	if rec.SelectSQL != "" {
		return rec.SelectSQL, nil
	}

	sql := rec.ExecutedSQL

	_, found, err := r.parser.LimitValue(sql, rec.Database.Driver)
	if err != nil {
		return "", errors.Wrap(err, "failed to detect the query limit")
	}
	if !found {
		return sql, nil
	}

	return StripLimit(sql), nil
}

// StripLimit removes a trailing LIMIT clause from the final statement. The
// trailing semicolon, when present, survives.
func StripLimit(sql string) string {
	return limitStripPattern.ReplaceAllString(sql, "$1")
}
