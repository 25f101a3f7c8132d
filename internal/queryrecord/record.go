// Package queryrecord describes the stored outcome of a query that was
// executed earlier and may now be exported to the workspace.
package queryrecord

import "time"

// LimitingFactor says what capped the row count of the executed query.
type LimitingFactor string

const (
	LimitNone             LimitingFactor = "NONE"
	LimitQuery            LimitingFactor = "QUERY"
	LimitDropdown         LimitingFactor = "DROPDOWN"
	LimitQueryAndDropdown LimitingFactor = "QUERY_AND_DROPDOWN"
)

// Probed reports whether the upstream runner appended one extra row to the
// declared limit to detect truncation. For such records the limit found in
// the executed SQL exceeds the number of user-visible rows by one.
func (f LimitingFactor) Probed() bool {
	switch f {
	case LimitQuery, LimitDropdown, LimitQueryAndDropdown:
		return true
	default:
		return false
	}
}

// Database points at the engine the query ran against. The driver must be
// registered in the process that replays the query.
type Database struct {
	Driver string `dynamodbav:"Driver"`
	DSN    string `dynamodbav:"Dsn"`
}

// Record is a single executed query. Exports never modify it.
type Record struct {
	ClientID string `dynamodbav:"ClientId"`

	// SelectSQL is the user-curated SELECT statement, set when the user
	// explicitly chose a subset of the executed script. It takes precedence
	// over ExecutedSQL and is trusted to carry no synthetic limit.
	SelectSQL   string `dynamodbav:"SelectSql"`
	ExecutedSQL string `dynamodbav:"ExecutedSql"`

	LimitingFactor LimitingFactor `dynamodbav:"LimitingFactor"`

	// ResultsKey addresses the cached result set in the results backend.
	// Empty when the results were never cached.
	ResultsKey string `dynamodbav:"ResultsKey"`

	Catalog  string   `dynamodbav:"Catalog"`
	Schema   string   `dynamodbav:"Schema"`
	Database Database `dynamodbav:"Database"`

	CreatedAt time.Time `dynamodbav:"CreatedAt,unixtime"`
}
