package db

import "gorm.io/gorm"

// Dialect identifiers supported by the database layer.
const (
	// DialectPostgres is the PostgreSQL dialect name.
	DialectPostgres = "postgres"
	// DialectSQLite is the SQLite dialect name.
	DialectSQLite = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// FlairNamesAggExpr returns a SQL expression aggregating joined flair
// names into one comma-separated value for the current dialect.
func FlairNamesAggExpr(conn *gorm.DB) string {
	if IsSQLite(conn) {
		return "GROUP_CONCAT(f.flair_name, ',')"
	}
	return "STRING_AGG(f.flair_name, ',')"
}
