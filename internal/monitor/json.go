package monitor

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/rangerwatch/internal/store"
)

// CheckOutput is the JSON envelope for `rangerwatch check --output json`.
type CheckOutput struct {
	Result   store.CheckResult `json:"result"`
	Status   string            `json:"status"`
	ExitCode int               `json:"exitCode"`
}

// WriteJSON serializes a CheckOutput envelope to w.
func WriteJSON(w io.Writer, res store.CheckResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(CheckOutput{
		Result:   res,
		Status:   StatusLine(res),
		ExitCode: ExitCode(res.Severity),
	})
}
