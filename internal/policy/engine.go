package policy

import "github.com/ppiankov/rangerwatch/internal/store"

// OutcomeKind distinguishes a health verdict from an informational listing.
type OutcomeKind int

const (
	OutcomeVerdict OutcomeKind = iota
	OutcomeListing
)

// Request is everything the engine needs besides the payload.
type Request struct {
	Criteria Criteria
	Config   ValidationConfig
	Listing  bool
}

// Outcome is the result of Evaluate. Verdict outcomes carry the resolved
// record; listing outcomes carry the rendered lines and the records listed.
type Outcome struct {
	Kind    OutcomeKind
	Verdict Verdict
	Record  Record
	Records []Record
	Lines   []string
}

// Severity returns the check outcome. A listing makes no health judgement
// and is always UNKNOWN.
func (o Outcome) Severity() store.Severity {
	if o.Kind == OutcomeListing {
		return store.SeverityUnknown
	}
	return o.Verdict.Severity
}

// Evaluate runs extraction, then either listing or resolution and validation,
// over an already-fetched payload. Use SeverityOf to classify the error.
func Evaluate(payload []byte, req Request) (Outcome, error) {
	if err := req.Criteria.Validate(req.Listing); err != nil {
		return Outcome{}, err
	}

	ext, err := Extract(payload, req.Criteria, req.Listing)
	if err != nil {
		return Outcome{}, err
	}

	if req.Listing {
		return Outcome{
			Kind:    OutcomeListing,
			Records: ext.Records,
			Lines:   Render(ext.Records),
		}, nil
	}

	rec, err := Resolve(ext.Records, req.Criteria, ext.Direct)
	if err != nil {
		return Outcome{}, err
	}

	v, err := Validate(rec, req.Criteria, req.Config)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: OutcomeVerdict, Verdict: v, Record: rec}, nil
}
