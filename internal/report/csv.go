// Package report renders policy lists in machine-readable formats.
package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ppiankov/rangerwatch/internal/policy"
)

var csvHeader = []string{
	"id", "name", "repositoryName", "repositoryType",
	"enabled", "auditEnabled", "recursive", "description",
}

// WriteCSV writes policies as CSV rows to w.
func WriteCSV(w io.Writer, records []policy.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for i := range records {
		r := &records[i]
		row := []string{
			r.ID,
			r.Name,
			r.RepositoryName,
			r.RepositoryType,
			strconv.FormatBool(r.Enabled),
			strconv.FormatBool(r.AuditEnabled),
			strconv.FormatBool(r.Recursive),
			r.Description,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
