// Package notify sends webhook notifications when policy checks change state.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/rangerwatch/internal/config"
	"github.com/ppiankov/rangerwatch/internal/store"
)

const httpTimeout = 10 * time.Second

// Notifier sends alerts for checks that enter or escalate within alerting
// severities, and recoveries for checks that leave them.
type Notifier struct {
	severities map[store.Severity]bool
	sent       map[string]time.Time
	client     *http.Client
	now        func() time.Time
	webhooks   []config.WebhookConfig
	cooldown   time.Duration
	mu         sync.Mutex
}

// New creates a Notifier from notification config. Returns nil if not enabled or no webhooks.
func New(cfg config.NotificationConfig) *Notifier {
	if !cfg.Enabled || len(cfg.Webhooks) == 0 {
		return nil
	}

	sevs := make(map[store.Severity]bool)
	for _, s := range cfg.Severities {
		sevs[store.Severity(strings.ToUpper(strings.TrimSpace(s)))] = true
	}
	if len(sevs) == 0 {
		sevs[store.SeverityCritical] = true
		sevs[store.SeverityUnknown] = true
	}

	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = time.Hour
	}

	return &Notifier{
		webhooks:   cfg.Webhooks,
		severities: sevs,
		cooldown:   cooldown,
		sent:       make(map[string]time.Time),
		client:     &http.Client{Timeout: httpTimeout},
		now:        time.Now,
	}
}

// Notify compares prev and curr snapshots. Checks that newly reach an alerting
// severity, or escalate within them, are sent as alerts; checks that were
// alerting and are now below every alerting severity are sent as recoveries.
func (n *Notifier) Notify(prev, curr store.Snapshot) {
	prevMap := make(map[string]store.Severity, len(prev.Results))
	for i := range prev.Results {
		prevMap[prev.Results[i].Check] = prev.Results[i].Severity
	}

	now := n.now()
	var alerts []store.CheckResult

	n.mu.Lock()
	for i := range curr.Results {
		r := &curr.Results[i]
		if !n.severities[r.Severity] {
			continue
		}

		prevSev, existed := prevMap[r.Check]
		if existed && n.severities[prevSev] && !isEscalation(prevSev, r.Severity) {
			continue
		}

		if lastSent, ok := n.sent[r.Check]; ok && now.Sub(lastSent) < n.cooldown {
			continue
		}

		alerts = append(alerts, *r)
		n.sent[r.Check] = now
	}
	n.mu.Unlock()

	recovered := n.computeRecovered(prev, curr)

	if len(alerts) == 0 && len(recovered) == 0 {
		return
	}

	n.dispatch(alerts, recovered)
}

// computeRecovered returns checks that were alerting in prev and are present
// in curr at a non-alerting severity. Checks removed from config are not
// reported.
func (n *Notifier) computeRecovered(prev, curr store.Snapshot) []store.CheckResult {
	prevAlerting := make(map[string]bool, len(prev.Results))
	for i := range prev.Results {
		if n.severities[prev.Results[i].Severity] {
			prevAlerting[prev.Results[i].Check] = true
		}
	}
	var recovered []store.CheckResult
	for i := range curr.Results {
		r := &curr.Results[i]
		if prevAlerting[r.Check] && !n.severities[r.Severity] {
			recovered = append(recovered, *r)
		}
	}
	if len(recovered) > 0 {
		n.mu.Lock()
		for i := range recovered {
			delete(n.sent, recovered[i].Check)
		}
		n.mu.Unlock()
	}
	return recovered
}

// dispatch sends alerts and recoveries to all configured webhooks.
func (n *Notifier) dispatch(alerts, recovered []store.CheckResult) {
	for _, wh := range n.webhooks {
		switch wh.Type {
		case "slack":
			n.sendSlack(wh.URL, alerts, recovered)
		case "pagerduty":
			n.sendPagerDuty(wh, alerts)
			n.resolvePagerDuty(wh, recovered)
		default:
			n.sendGeneric(wh.URL, alerts, recovered)
		}
	}
}

// isEscalation reports whether curr is strictly more severe than prev.
func isEscalation(prev, curr store.Severity) bool {
	return curr.Rank() > prev.Rank()
}

// GenericPayload is the JSON body sent to generic webhooks.
type GenericPayload struct {
	Timestamp time.Time      `json:"timestamp"`
	Summary   string         `json:"summary"`
	Alerts    []GenericCheck `json:"alerts"`
	Recovered []GenericCheck `json:"recovered,omitempty"`
}

// GenericCheck is a single check outcome in the generic webhook payload.
type GenericCheck struct {
	Check       string         `json:"check"`
	Severity    store.Severity `json:"severity"`
	Message     string         `json:"message"`
	PolicyID    string         `json:"policyId,omitempty"`
	PolicyName  string         `json:"policyName,omitempty"`
	Remediation string         `json:"remediation,omitempty"`
}

func toGeneric(results []store.CheckResult) []GenericCheck {
	out := make([]GenericCheck, len(results))
	for i := range results {
		out[i] = GenericCheck{
			Check:       results[i].Check,
			Severity:    results[i].Severity,
			Message:     results[i].Message,
			PolicyID:    results[i].PolicyID,
			PolicyName:  results[i].PolicyName,
			Remediation: results[i].Remediation,
		}
	}
	return out
}

func (n *Notifier) sendGeneric(webhookURL string, alerts, recovered []store.CheckResult) {
	payload := GenericPayload{
		Timestamp: n.now().UTC(),
		Summary:   buildSummary(alerts, recovered),
		Alerts:    toGeneric(alerts),
		Recovered: toGeneric(recovered),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("notification: marshal error", "err", err)
		return
	}

	n.post(webhookURL, "application/json", body)
}

// SlackPayload is the JSON body sent to Slack incoming webhooks.
type SlackPayload struct {
	Blocks []SlackBlock `json:"blocks"`
}

// SlackBlock is a Slack Block Kit block.
type SlackBlock struct {
	Text *SlackText `json:"text,omitempty"`
	Type string     `json:"type"`
}

// SlackText is a Slack text element.
type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (n *Notifier) sendSlack(webhookURL string, alerts, recovered []store.CheckResult) {
	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: "rangerwatch: " + buildSummary(alerts, recovered),
			},
		},
	}

	for i := range alerts {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("[%s] *%s*: %s", alerts[i].Severity, alerts[i].Check, alerts[i].Message),
			},
		})
	}
	for i := range recovered {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("[RECOVERED] *%s*: %s", recovered[i].Check, recovered[i].Message),
			},
		})
	}

	blocks = append(blocks, SlackBlock{
		Type: "context",
		Text: &SlackText{
			Type: "mrkdwn",
			Text: fmt.Sprintf("Source: rangerwatch | %s", n.now().UTC().Format(time.RFC3339)),
		},
	})

	body, err := json.Marshal(SlackPayload{Blocks: blocks})
	if err != nil {
		slog.Warn("notification: slack marshal error", "err", err)
		return
	}

	n.post(webhookURL, "application/json", body)
}

func (n *Notifier) post(webhookURL, contentType string, body []byte) {
	resp, err := n.client.Post(webhookURL, contentType, bytes.NewReader(body)) //nolint:noctx // fire-and-forget notification
	if err != nil {
		slog.Warn("notification: webhook delivery failed", "url", webhookURL, "err", err)
		return
	}
	defer resp.Body.Close() //nolint:errcheck // read-only close
	if resp.StatusCode >= 300 {
		slog.Warn("notification: webhook returned non-2xx", "url", webhookURL, "status", resp.StatusCode)
	}
}

func buildSummary(alerts, recovered []store.CheckResult) string {
	counts := make(map[store.Severity]int)
	for i := range alerts {
		counts[alerts[i].Severity]++
	}
	var parts []string
	for _, sev := range []store.Severity{store.SeverityCritical, store.SeverityUnknown, store.SeverityWarning, store.SeverityOK} {
		if counts[sev] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[sev], strings.ToLower(string(sev))))
		}
	}
	if len(recovered) > 0 {
		parts = append(parts, fmt.Sprintf("%d recovered", len(recovered)))
	}
	return strings.Join(parts, ", ") + " check(s)"
}
