// Package probe runs policy checks against Ranger Admin: one fetch, one
// evaluation, one result.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/rangerwatch/internal/policy"
	"github.com/ppiankov/rangerwatch/internal/store"
)

// Fetcher returns the raw policy endpoint body; the list when id is empty.
type Fetcher interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// Runner executes checks with a shared fetcher.
type Runner struct {
	fetcher     Fetcher
	tracer      trace.Tracer
	now         func() time.Time
	displayName string
	endpoint    string
	verbose     bool
}

// Option customizes a Runner.
type Option func(*Runner)

// WithVerbose adds the Ranger endpoint to not-found messages.
func WithVerbose(endpoint string) Option {
	return func(r *Runner) {
		r.verbose = true
		r.endpoint = endpoint
	}
}

// WithTracer sets the tracer used for check spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = t
	}
}

// NewRunner creates a runner. displayName prefixes every message.
func NewRunner(f Fetcher, displayName string, opts ...Option) *Runner {
	r := &Runner{
		fetcher:     f,
		displayName: displayName,
		now:         time.Now,
		tracer:      otel.Tracer("github.com/ppiankov/rangerwatch/internal/probe"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Request builds the engine request for a check.
func Request(spec store.CheckSpec, listing bool) policy.Request {
	return policy.Request{
		Criteria: policy.NewCriteria(spec.PolicyID, spec.Policy),
		Config: policy.ValidationConfig{
			RequireAudit:     !spec.NoAudit,
			RequireRecursive: spec.Recursive,
		},
		Listing: listing,
	}
}

// Run executes one check. Transport failures are CRITICAL; malformed
// payloads and internal inconsistencies are UNKNOWN; listing is UNKNOWN.
func (r *Runner) Run(ctx context.Context, spec store.CheckSpec, listing bool) (store.CheckResult, policy.Outcome) {
	start := r.now()
	res := store.CheckResult{At: start, Check: spec.Label()}

	ctx, span := r.tracer.Start(ctx, "policy.check",
		trace.WithAttributes(
			attribute.String("check", res.Check),
			attribute.Bool("listing", listing),
		),
	)
	defer span.End()

	out, err := r.evaluate(ctx, spec, listing)
	res.Duration = r.now().Sub(start)

	switch {
	case err != nil:
		var fe *FetchError
		res.Unreachable = errors.As(err, &fe)
		res.Severity = severityOf(err)
		res.Error = err.Error()
		res.Message = r.errorMessage(err)
	case out.Kind == policy.OutcomeListing:
		res.Severity = out.Severity()
		res.Lines = out.Lines
		res.Message = fmt.Sprintf("listed %d %s policies", len(out.Records), r.displayName)
	default:
		res.Severity = out.Severity()
		res.Message = r.displayName + " " + out.Verdict.Message()
		res.Resolved = true
		res.PolicyID = out.Record.ID
		res.PolicyName = out.Record.Name
		res.Enabled = out.Record.Enabled
		res.Auditing = out.Record.AuditEnabled
		res.Recursive = out.Record.Recursive
	}

	span.SetAttributes(attribute.String("severity", string(res.Severity)))
	return res, out
}

func (r *Runner) evaluate(ctx context.Context, spec store.CheckSpec, listing bool) (policy.Outcome, error) {
	req := Request(spec, listing)
	if err := req.Criteria.Validate(listing); err != nil {
		return policy.Outcome{}, err
	}

	id := req.Criteria.ID
	if listing {
		id = ""
	}
	payload, err := r.fetcher.Fetch(ctx, id)
	if err != nil {
		return policy.Outcome{}, &FetchError{Err: err}
	}
	return policy.Evaluate(payload, req)
}

// FetchError wraps a transport failure.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

func severityOf(err error) store.Severity {
	var fe *FetchError
	if errors.As(err, &fe) {
		return store.SeverityCritical
	}
	return policy.SeverityOf(err)
}

func (r *Runner) errorMessage(err error) string {
	var nf *policy.NotFoundError
	switch {
	case errors.As(err, &nf):
		return fmt.Sprintf("no matching policy found with name '%s' in policy list returned by %s%s",
			nf.Name, r.displayName, r.hostInfo())
	case errors.Is(err, policy.ErrNoPoliciesFound):
		return fmt.Sprintf("no %s policies found", r.displayName)
	case errors.Is(err, policy.ErrMalformedShape):
		return fmt.Sprintf("unexpected response from %s%s: %v", r.displayName, r.hostInfo(), err)
	default:
		return err.Error()
	}
}

func (r *Runner) hostInfo() string {
	if !r.verbose || r.endpoint == "" {
		return ""
	}
	return fmt.Sprintf(" at '%s'", r.endpoint)
}
