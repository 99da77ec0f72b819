// Package remote implements the tenant engine's outward-facing
// collaborators: the cross-tenant membership validator and the webhook
// dispatcher. Both speak JSON over HTTP and honor context deadlines so a
// slow peer never blocks a request past its budget.
package remote

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/drivelab/orgdrive/internal/logger"
	"github.com/drivelab/orgdrive/pkg/drive"
	"github.com/drivelab/orgdrive/pkg/metrics"
)

// Validator asks a foreign drive whether a user belongs to a group by
// POSTing to the peer's groups/validate route.
type Validator struct {
	client *http.Client

	// APIKey authenticates this drive against peers. Peers issue it out
	// of band.
	apiKey string
}

// NewValidator builds a Validator. apiKey may be empty when peers accept
// unauthenticated callers.
func NewValidator(apiKey string) *Validator {
	return &Validator{
		client: &http.Client{Timeout: 15 * time.Second},
		apiKey: apiKey,
	}
}

type validateRequest struct {
	UserID  drive.UserID  `json:"user_id"`
	GroupID drive.GroupID `json:"group_id"`
}

type validateEnvelope struct {
	OK *struct {
		Data struct {
			IsMember bool `json:"is_member"`
		} `json:"data"`
	} `json:"ok"`
	Err *struct {
		Code    uint16 `json:"code"`
		Message string `json:"message"`
	} `json:"err"`
}

// IsMember implements drive.GroupValidator. Transport failures and
// non-2xx answers surface as Unreachable so the caller denies access.
func (v *Validator) IsMember(ctx context.Context, endpoint string, user drive.UserID, group drive.GroupID) (bool, error) {
	body, err := json.Marshal(validateRequest{UserID: user, GroupID: group})
	if err != nil {
		return false, &drive.Error{Code: drive.ErrInternal, Message: "encoding validation request"}
	}

	url := endpoint + "/groups/validate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, &drive.Error{Code: drive.ErrUnreachable, Message: "building validation request"}
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return false, &drive.Error{Code: drive.ErrUnreachable, Message: fmt.Sprintf("validation endpoint unreachable: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, &drive.Error{Code: drive.ErrUnreachable, Message: "validation endpoint returned " + strconv.Itoa(resp.StatusCode)}
	}

	var envelope validateEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.OK == nil {
		return false, &drive.Error{Code: drive.ErrUnreachable, Message: "malformed validation response"}
	}
	return envelope.OK.Data.IsMember, nil
}

// Dispatcher delivers webhook payloads over HTTP.
//
// Deliveries run on a bounded queue drained by a single worker so a slow
// receiver never blocks the request path. Payloads are dropped (with a
// warning) when the queue is full; delivery is at-most-once by design.
type Dispatcher struct {
	client  *http.Client
	queue   chan delivery
	metrics metrics.WebhookMetrics
	done    chan struct{}
}

type delivery struct {
	hook    drive.Webhook
	payload drive.WebhookPayload
}

// NewDispatcher builds a Dispatcher and starts its worker. Passing nil
// metrics selects a no-op recorder. Call Close to drain and stop.
func NewDispatcher(hookMetrics metrics.WebhookMetrics) *Dispatcher {
	if hookMetrics == nil {
		hookMetrics = metrics.NewWebhookMetrics()
	}
	d := &Dispatcher{
		client:  &http.Client{Timeout: 30 * time.Second},
		queue:   make(chan delivery, 256),
		metrics: hookMetrics,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Dispatch implements drive.Dispatcher. It never blocks the caller.
func (d *Dispatcher) Dispatch(_ context.Context, hook drive.Webhook, payload drive.WebhookPayload) {
	select {
	case d.queue <- delivery{hook: hook, payload: payload}:
		d.metrics.RecordQueueDepth(len(d.queue))
	default:
		logger.Warn("webhook queue full, dropping %s delivery to %s", payload.Event, hook.URL)
	}
}

// Close stops the worker after the queued deliveries drain.
func (d *Dispatcher) Close() {
	close(d.queue)
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for item := range d.queue {
		d.deliver(item.hook, item.payload)
		d.metrics.RecordQueueDepth(len(d.queue))
	}
}

// deliver POSTs one payload. The hook's shared-secret signature rides in
// X-Webhook-Signature as an HMAC-SHA256 of the body.
func (d *Dispatcher) deliver(hook drive.Webhook, payload drive.WebhookPayload) {
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("encoding webhook payload: %v", err)
		d.metrics.RecordDelivery(string(payload.Event), time.Since(start), "error")
		return
	}

	req, err := http.NewRequest(http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		logger.Warn("building webhook request for %s: %v", hook.URL, err)
		d.metrics.RecordDelivery(string(payload.Event), time.Since(start), "error")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", string(payload.Event))
	if hook.Signature != "" {
		mac := hmac.New(sha256.New, []byte(hook.Signature))
		mac.Write(body)
		req.Header.Set("X-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		logger.Warn("webhook delivery to %s failed: %v", hook.URL, err)
		d.metrics.RecordDelivery(string(payload.Event), time.Since(start), "error")
		return
	}
	_ = resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode/100) + "xx"
	d.metrics.RecordDelivery(string(payload.Event), time.Since(start), status)
	logger.Debug("delivered %s webhook to %s (%d)", payload.Event, hook.URL, resp.StatusCode)
}
