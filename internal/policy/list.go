package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// column is one fixed column of the policy table.
type column struct {
	title string
	value func(*Record) string
	fixed bool // width is the title width regardless of content
}

var listColumns = []column{
	{title: "Id", value: func(r *Record) string { return r.ID }},
	{title: "Name", value: func(r *Record) string { return r.Name }},
	{title: "RepoName", value: func(r *Record) string { return r.RepositoryName }},
	{title: "RepoType", value: func(r *Record) string { return r.RepositoryType }},
	{title: "Enabled", value: func(r *Record) string { return FormatBool(r.Enabled) }},
	{title: "Audit", value: func(r *Record) string { return FormatBool(r.AuditEnabled) }},
	{title: "Recursive", value: func(r *Record) string { return FormatBool(r.Recursive) }},
	{title: "Description", value: func(r *Record) string { return r.Description }, fixed: true},
}

// Render returns the listing output: an indented dump of every record
// followed by the aligned table.
func Render(records []Record) []string {
	var lines []string
	for i := range records {
		lines = append(lines, strings.Split(Dump(&records[i]), "\n")...)
	}
	return append(lines, Table(records)...)
}

// Dump pretty-prints a record's JSON as received from the service.
func Dump(r *Record) string {
	raw, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%+v", *r)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "    "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Table renders the fixed-column table: border, header, border, one row per
// record.
func Table(records []Record) []string {
	widths := make([]int, len(listColumns))
	total := 0
	for i, col := range listColumns {
		widths[i] = utf8.RuneCountInString(col.title)
		if !col.fixed {
			for j := range records {
				if n := utf8.RuneCountInString(col.value(&records[j])); n > widths[i] {
					widths[i] = n
				}
			}
		}
		total += widths[i] + 2
	}

	border := strings.Repeat("=", total)
	lines := make([]string, 0, len(records)+3)

	var b strings.Builder
	for i, col := range listColumns {
		fmt.Fprintf(&b, "%-*s  ", widths[i], col.title)
	}
	lines = append(lines, border, b.String(), border)

	for j := range records {
		b.Reset()
		for i, col := range listColumns {
			fmt.Fprintf(&b, "%-*s  ", widths[i], col.value(&records[j]))
		}
		lines = append(lines, b.String())
	}
	return lines
}
