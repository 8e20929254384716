package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"proctorhub/internal/model"
)

// ReportSink accepts violation candidates from detectors. Reporter is
// the production implementation.
type ReportSink interface {
	Report(violationType string, severity model.Severity, description string, needsSnapshot bool)
}

// Reporter turns accepted detections into violation reports against
// the gateway's ingestion endpoint. Delivery is best-effort at-most-
// once: throttled reports are dropped, snapshot failures downgrade to
// a report without evidence, and network errors are swallowed so the
// exam UI is never interrupted.
type Reporter struct {
	baseURL  string
	examID   string
	token    string
	client   *http.Client
	throttle *Throttle
	frames   FrameSource
}

func NewReporter(baseURL, examID, token string, throttle *Throttle, frames FrameSource) *Reporter {
	return &Reporter{
		baseURL:  baseURL,
		examID:   examID,
		token:    token,
		throttle: throttle,
		frames:   frames,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type reportBody struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Snapshot    string `json:"frameSnapshot,omitempty"`
}

// Report forwards one violation candidate, or drops it inside the
// per-type cooldown. The snapshot, when requested, is captured
// synchronously from the latest frame before the network call.
func (r *Reporter) Report(violationType string, severity model.Severity, description string, needsSnapshot bool) {
	if !r.throttle.Allow(violationType) {
		return
	}

	body := reportBody{
		Type:        violationType,
		Severity:    severity.String(),
		Description: description,
	}
	if needsSnapshot && r.frames != nil {
		if frame, err := r.frames.LatestFrame(); err == nil && frame != nil {
			if snapshot, err := encodeSnapshot(frame); err == nil {
				body.Snapshot = snapshot
			}
		}
		// Capture failure sends the report without a snapshot.
	}

	go r.send(body)
}

func (r *Reporter) send(body reportBody) {
	data, err := json.Marshal(body)
	if err != nil {
		return
	}

	url := fmt.Sprintf("%s/v1/exams/%s/violations", r.baseURL, r.examID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		// Swallowed: transient network failure must not surface.
		log.Printf("[reporter] delivery failed for %s: %v", body.Type, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("[reporter] server rejected %s: %s", body.Type, resp.Status)
	}
}
