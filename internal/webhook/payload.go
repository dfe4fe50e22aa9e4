package webhook

import (
	"encoding/json"
	"strings"
)

// Notification is the completion callback sent by a render backend.
// Backends disagree on field names; every alias is resolved here and
// nowhere else.
type Notification struct {
	ExecutionID string          `json:"execution_id"`
	Status      string          `json:"status"`
	Outputs     json.RawMessage `json:"outputs,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
	Meta        map[string]any  `json:"meta,omitempty"`
}

// NormalizeStatus maps the upstream status vocabulary onto ours.
func NormalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "succeeded", "success", "completed", "ready", "done":
		return "completed"
	case "failed", "error", "cancelled", "canceled":
		return "failed"
	default:
		return "processing"
	}
}

// jobIDMetaKeys are the metadata paths a backend may echo our job id
// under.
var jobIDMetaKeys = []string{"job_id", "jobId", "correlation_id", "alfie_job_id"}

// JobIDCandidates returns every plausible job id in the notification, in
// lookup priority order: explicit metadata keys first, then the execution
// id itself (workers submit it as the correlation value).
func (n *Notification) JobIDCandidates() []string {
	var out []string
	seen := map[string]bool{}
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, key := range jobIDMetaKeys {
		if v, ok := n.Meta[key].(string); ok {
			add(v)
		}
	}
	for _, raw := range [][]byte{n.Result, n.Output} {
		var m map[string]any
		if json.Unmarshal(raw, &m) == nil {
			for _, key := range jobIDMetaKeys {
				if v, ok := m[key].(string); ok {
					add(v)
				}
			}
		}
	}
	add(n.ExecutionID)
	return out
}

var (
	urlAliases        = []string{"url", "secure_url", "output_url", "image_url", "media_url"}
	externalIDAliases = []string{"public_id", "asset_id", "external_id", "media_id"}
)

// Media is the extracted output of a completed render.
type Media struct {
	URL        string
	ExternalID string
}

// ExtractMedia pulls the first media URL and its external identifier out
// of the output payload, which may be a single record, an array of
// records, or absent.
func (n *Notification) ExtractMedia() *Media {
	for _, raw := range [][]byte{n.Outputs, n.Output, n.Result} {
		if len(raw) == 0 {
			continue
		}
		for _, rec := range outputRecords(raw) {
			url := firstString(rec, urlAliases)
			if url == "" {
				continue
			}
			return &Media{
				URL:        url,
				ExternalID: firstString(rec, externalIDAliases),
			}
		}
	}
	return nil
}

func outputRecords(raw json.RawMessage) []map[string]any {
	var one map[string]any
	if json.Unmarshal(raw, &one) == nil {
		return []map[string]any{one}
	}
	var many []map[string]any
	if json.Unmarshal(raw, &many) == nil {
		return many
	}
	return nil
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// ErrorMessage digs a human-readable failure reason out of the nested
// error and meta fields, with a layered fallback chain.
func (n *Notification) ErrorMessage() string {
	if len(n.Error) > 0 {
		var s string
		if json.Unmarshal(n.Error, &s) == nil && s != "" {
			return s
		}
		var m map[string]any
		if json.Unmarshal(n.Error, &m) == nil {
			for _, key := range []string{"message", "detail", "error", "reason"} {
				if v, ok := m[key].(string); ok && v != "" {
					return v
				}
			}
		}
	}
	for _, key := range []string{"error", "error_message", "failure_reason"} {
		if v, ok := n.Meta[key].(string); ok && v != "" {
			return v
		}
	}
	return "render failed without detail"
}
