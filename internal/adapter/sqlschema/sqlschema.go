// Package sqlschema builds the DDL and row shapes shared by the SQL stores.
//
// Labels are written as (id_station, labels). Centroids are written as one
// row per cluster: an "index" column holding the label followed by one column
// per profiled hour named after the hour ("0" through "23").
package sqlschema

import (
	"strconv"
	"strings"

	"github.com/couchcryptid/station-clusters/internal/domain"
)

// Column names of the result tables.
const (
	ColumnStation = "id_station"
	ColumnLabel   = "labels"
	ColumnIndex   = "index"
)

// Types maps the logical column types onto a SQL dialect.
type Types struct {
	Text    string
	Integer string
	Real    string
}

// Dialect type sets.
var (
	Postgres = Types{Text: "TEXT", Integer: "BIGINT", Real: "DOUBLE PRECISION"}
	SQLite   = Types{Text: "TEXT", Integer: "INTEGER", Real: "REAL"}
)

// QuoteIdent quotes a table or column name. A schema-qualified name such as
// "public.centroids" is quoted part by part, the way gorm renders Table names.
func QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// HourColumn names the centroid column for an hour of day.
func HourColumn(hour int) string {
	return strconv.Itoa(hour)
}

// CentroidColumns lists the centroid table columns in order.
func CentroidColumns(hours []int) []string {
	cols := make([]string, 0, len(hours)+1)
	cols = append(cols, ColumnIndex)
	for _, h := range hours {
		cols = append(cols, HourColumn(h))
	}
	return cols
}

// CreateLabels returns the DDL for the labels table.
func CreateLabels(table string, t Types) string {
	return "CREATE TABLE " + QuoteIdent(table) + " (" +
		QuoteIdent(ColumnStation) + " " + t.Text + " NOT NULL, " +
		QuoteIdent(ColumnLabel) + " " + t.Integer + " NOT NULL)"
}

// CreateCentroids returns the DDL for a centroids table with one column per hour.
func CreateCentroids(table string, hours []int, t Types) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE " + QuoteIdent(table) + " (")
	b.WriteString(QuoteIdent(ColumnIndex) + " " + t.Integer + " NOT NULL")
	for _, h := range hours {
		b.WriteString(", " + QuoteIdent(HourColumn(h)) + " " + t.Real + " NOT NULL")
	}
	b.WriteString(")")
	return b.String()
}

// DropTable returns the statement removing a previous run's table.
func DropTable(table string) string {
	return "DROP TABLE IF EXISTS " + QuoteIdent(table)
}

// InsertStatement returns a parameterized INSERT using ph to render the
// placeholder for the 1-based argument position.
func InsertStatement(table string, columns []string, ph func(int) string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
		params[i] = ph(i + 1)
	}
	return "INSERT INTO " + QuoteIdent(table) + " (" + strings.Join(quoted, ", ") +
		") VALUES (" + strings.Join(params, ", ") + ")"
}

// CentroidRows returns one argument list per cluster, matching CentroidColumns.
func CentroidRows(c domain.Clustering) [][]any {
	rows := make([][]any, c.ClusterCount())
	for label := range rows {
		row := make([]any, 0, len(c.Hours)+1)
		row = append(row, label)
		for _, v := range c.Centroid(label) {
			row = append(row, v)
		}
		rows[label] = row
	}
	return rows
}
