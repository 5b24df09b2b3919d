package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/rangerwatch/internal/config"
	"github.com/ppiankov/rangerwatch/internal/store"
)

// pagerDutyEventsURL is the PagerDuty Events API v2 endpoint (var for testing).
var pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue" //nolint:gosec // not a credential

// pdEvent is a PagerDuty Events API v2 request body.
type pdEvent struct {
	Payload     *pdPayload `json:"payload,omitempty"`
	RoutingKey  string     `json:"routing_key"`
	EventAction string     `json:"event_action"`
	DedupKey    string     `json:"dedup_key"`
}

// pdPayload is the payload section of a PagerDuty trigger event.
type pdPayload struct {
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"custom_details,omitempty"`
	Summary   string            `json:"summary"`
	Source    string            `json:"source"`
	Severity  string            `json:"severity"`
}

// dedupKey ties trigger and resolve events for one check together.
func dedupKey(check string) string {
	return "rangerwatch/" + check
}

func (n *Notifier) sendPagerDuty(wh config.WebhookConfig, alerts []store.CheckResult) {
	for i := range alerts {
		r := &alerts[i]
		event := pdEvent{
			RoutingKey:  wh.RoutingKey,
			EventAction: "trigger",
			DedupKey:    dedupKey(r.Check),
			Payload: &pdPayload{
				Summary:   pdSummary(r),
				Source:    "rangerwatch",
				Severity:  pdSeverity(r.Severity),
				Timestamp: n.now().UTC(),
				Details: map[string]string{
					"policyId":   r.PolicyID,
					"policyName": r.PolicyName,
				},
			},
		}

		body, err := json.Marshal(event)
		if err != nil {
			continue
		}
		n.post(pagerDutyEventsURL, "application/json", body)
	}
}

func (n *Notifier) resolvePagerDuty(wh config.WebhookConfig, recovered []store.CheckResult) {
	for i := range recovered {
		event := pdEvent{
			RoutingKey:  wh.RoutingKey,
			EventAction: "resolve",
			DedupKey:    dedupKey(recovered[i].Check),
		}

		body, err := json.Marshal(event)
		if err != nil {
			continue
		}
		n.post(pagerDutyEventsURL, "application/json", body)
	}
}

func pdSummary(r *store.CheckResult) string {
	return fmt.Sprintf("[%s] %s: %s", r.Severity, r.Check, r.Message)
}

func pdSeverity(s store.Severity) string {
	switch s {
	case store.SeverityCritical:
		return "critical"
	case store.SeverityUnknown:
		return "error"
	case store.SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}
