package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// upstreamStatus is implemented by outbound client errors that carry the remote HTTP status.
type upstreamStatus interface {
	UpstreamStatus() int
}

// LogFields flattens err into structured log fields: its code, the unwrap chain, the
// database error details for Postgres failures and the remote status for upstream failures.
// Empty values are omitted.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}

	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
	}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	var (
		pgxErr *pgconn.PgError
		pqErr  *pq.Error
		remote upstreamStatus
	)
	switch {
	case errors.As(err, &pgxErr):
		putPG(fields, pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail)
	case errors.As(err, &pqErr):
		putPG(fields, string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail)
	}
	if errors.As(err, &remote) {
		fields["upstream_status"] = remote.UpstreamStatus()
	}
	return fields
}

func putPG(fields map[string]any, code, constraint, table, detail string) {
	for k, v := range map[string]string{
		"pg_code":       code,
		"pg_constraint": constraint,
		"pg_table":      table,
		"pg_detail":     detail,
	} {
		if v != "" {
			fields[k] = v
		}
	}
}
