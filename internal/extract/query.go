package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ajitpratap0/skimmer/pkg/config"
	"github.com/ajitpratap0/skimmer/pkg/skimerrors"
)

// identifierPattern is what each dot-separated part of a table or column
// name must match before it is embedded in generated SQL.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Cursor is the incremental position a query resumes from. LastTS is
// only meaningful for ts-mode sources.
type Cursor struct {
	LastID  int64
	LastTS  time.Time
	LastTie int64
}

// Query is a built extraction query: SQL text with positional bind
// parameters, plus an interpolated preview for diagnostics only.
type Query struct {
	SQL     string
	Args    []interface{}
	Preview string
}

// QuoteIdentifier validates a possibly schema-qualified identifier and
// returns it double-quoted. Watermark values travel as bind parameters;
// identifiers are the only config-supplied text embedded in SQL, so they
// are strictly validated.
func QuoteIdentifier(name string) (string, error) {
	parts := strings.Split(name, ".")
	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		if !identifierPattern.MatchString(part) {
			return "", skimerrors.Newf(skimerrors.ErrorTypeValidation, "invalid SQL identifier: %s", name)
		}
		quoted = append(quoted, `"`+part+`"`)
	}
	return strings.Join(quoted, "."), nil
}

func qualified(alias, column string) (string, error) {
	quoted, err := QuoteIdentifier(column)
	if err != nil {
		return "", err
	}
	return alias + "." + quoted, nil
}

// BuildQuery constructs the bounded, ordered incremental query for one
// source. In id mode the predicate is id_column > last_id; in ts mode it
// is (ts > last_ts) OR (ts = last_ts AND tie > last_tie), which together
// with the ascending (ts, tie) ordering guarantees no row already seen is
// re-fetched and no row is skipped.
func BuildQuery(src *config.Source, cur Cursor, batchSize int) (Query, error) {
	inc := src.Incremental

	var alias, from string
	switch src.Kind {
	case config.KindTable:
		table, err := QuoteIdentifier(src.Table)
		if err != nil {
			return Query{}, err
		}
		alias = "t"
		from = table + " AS t"
	case config.KindQuery:
		alias = "q"
		from = "(" + src.Query + ") AS q"
	default:
		return Query{}, skimerrors.Newf(skimerrors.ErrorTypeValidation, "unknown source kind: %s", src.Kind)
	}

	selectSQL := "*"
	if src.Kind == config.KindTable && len(src.Select) > 0 {
		cols := make([]string, 0, len(src.Select))
		for _, col := range src.Select {
			quoted, err := QuoteIdentifier(col)
			if err != nil {
				return Query{}, err
			}
			cols = append(cols, quoted)
		}
		selectSQL = strings.Join(cols, ", ")
	}

	var clauses []string
	var args []interface{}
	var orderBy string

	switch inc.Mode {
	case config.ModeID:
		idSQL, err := qualified(alias, inc.IDColumn)
		if err != nil {
			return Query{}, err
		}
		clauses = append(clauses, fmt.Sprintf("(%s > $1)", idSQL))
		args = append(args, cur.LastID)
		orderBy = idSQL + " ASC"
	case config.ModeTS:
		tsSQL, err := qualified(alias, inc.TSColumn)
		if err != nil {
			return Query{}, err
		}
		tieSQL, err := qualified(alias, inc.TieBreaker)
		if err != nil {
			return Query{}, err
		}
		clauses = append(clauses, fmt.Sprintf("((%s > $1) OR (%s = $2 AND %s > $3))", tsSQL, tsSQL, tieSQL))
		args = append(args, cur.LastTS, cur.LastTS, cur.LastTie)
		orderBy = tsSQL + " ASC, " + tieSQL + " ASC"
	default:
		return Query{}, skimerrors.Newf(skimerrors.ErrorTypeValidation, "unknown incremental mode: %s", inc.Mode)
	}

	if src.Filter != "" {
		clauses = append(clauses, "("+src.Filter+")")
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT %d",
		selectSQL, from, strings.Join(clauses, " AND "), orderBy, batchSize)

	return Query{SQL: sql, Args: args, Preview: renderQuery(sql, args)}, nil
}

// renderQuery substitutes bind parameters into the SQL text for
// diagnostic display. Never executed.
func renderQuery(sql string, args []interface{}) string {
	rendered := sql
	for i := len(args); i >= 1; i-- {
		placeholder := fmt.Sprintf("$%d", i)
		rendered = strings.ReplaceAll(rendered, placeholder, formatParam(args[i-1]))
	}
	return rendered
}

func formatParam(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return "'" + v.Format("2006-01-02 15:04:05.999999") + "'"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", v)
	}
}
