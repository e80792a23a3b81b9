package storage

import (
	"strconv"
	"strings"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Dialect captures the few SQL differences between the supported engines.
// Queries are written with '?' placeholders and rebound per dialect.
type Dialect struct {
	Name       string
	DriverName string
	// LockClause is appended to SELECTs that must hold row locks until the
	// surrounding transaction ends. SQLite has no row locks; its write
	// transactions start with BEGIN IMMEDIATE instead.
	LockClause string
}

var (
	SQLite   = Dialect{Name: DialectSQLite, DriverName: "sqlite"}
	Postgres = Dialect{Name: DialectPostgres, DriverName: "pgx", LockClause: " FOR UPDATE"}
)

// Rebind converts '?' placeholders to the dialect's bind syntax.
func (d Dialect) Rebind(query string) string {
	if d.Name != DialectPostgres {
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
