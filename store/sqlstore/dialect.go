package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect names a supported database/sql driver.
type Dialect string

const (
	// Postgres uses the pgx stdlib driver.
	Postgres Dialect = "pgx"
	// SQLite uses the pure-Go modernc driver.
	SQLite Dialect = "sqlite"
)

func parseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported sql driver %q", driver)
	}
}

func (d Dialect) gooseDialect() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "postgres"
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres. Queries in
// this package never contain a literal question mark.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
