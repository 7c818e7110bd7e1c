// Package gateway implements C6, the Execution Gateway: the single egress
// point that turns a resolved action into an HTTP dispatch against the
// remote bot-action endpoint, normalizes the response, and emits an audit
// entry for every attempt. Modeled on the teacher's llm.Client: a raw
// net/http client, no REST framework, context-driven cancellation.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/conscious-bot/planning-core/internal/config"
	"github.com/conscious-bot/planning-core/internal/normalizer"
	"github.com/conscious-bot/planning-core/internal/types"
)

const defaultTimeout = 15 * time.Second

// BotConnection is the pre-flight collaborator checked before every
// dispatch attempt.
type BotConnection interface {
	IsConnected() bool
}

// AuditSink receives one entry per dispatch attempt. A panic raised by a
// sink is recovered and logged by Execute, so a faulty sink never breaks a
// dispatch.
type AuditSink interface {
	RecordDispatch(entry types.AuditEntry)
}

// DispatchRequest is one egress request (spec §4.6).
type DispatchRequest struct {
	Origin   string
	Priority string
	Action   types.ResolvedAction
	Context  map[string]any
}

// Gateway is C6's single egress point.
type Gateway struct {
	cfg        *config.Config
	endpoint   string
	httpClient *http.Client
	bot        BotConnection
	audit      AuditSink
}

// New constructs a Gateway posting to endpoint (e.g. "http://localhost:3000/action").
func New(cfg *config.Config, endpoint string, bot BotConnection, audit AuditSink) *Gateway {
	return &Gateway{
		cfg:        cfg,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
		bot:        bot,
		audit:      audit,
	}
}

// Execute dispatches req through the mode gate, bot pre-flight check, HTTP
// transport, and response normalizer, emitting exactly one audit entry per
// call regardless of outcome.
func (g *Gateway) Execute(ctx context.Context, req DispatchRequest) types.NormalizedActionResponse {
	started := time.Now()

	if g.cfg.ExecutorMode == config.ModeShadow {
		resp := types.NormalizedActionResponse{OK: false, Error: "Blocked by shadow mode"}
		g.emitAudit(req, resp, 0, true)
		return resp
	}

	if g.bot == nil || !g.bot.IsConnected() {
		resp := types.NormalizedActionResponse{OK: false, Error: "Bot not connected"}
		g.emitAudit(req, resp, time.Since(started).Milliseconds(), false)
		return resp
	}

	payload, err := g.dispatch(ctx, req)
	resp := normalizer.Normalize(payload)
	if err != nil && payload == nil {
		resp = types.NormalizedActionResponse{OK: false, Error: err.Error()}
	}
	g.emitAudit(req, resp, time.Since(started).Milliseconds(), false)
	return resp
}

// dispatch sends req.Action to the remote endpoint. Transient transport
// errors (connection refused, timeout establishing the connection) get a
// small bounded retry via backoff; leaf-level failures reported in the
// response body are not retried here — that judgment belongs to the
// normalizer and the caller's own retry policy.
func (g *Gateway) dispatch(ctx context.Context, req DispatchRequest) (any, error) {
	body, err := json.Marshal(map[string]any{
		"origin":   req.Origin,
		"priority": req.Priority,
		"action":   req.Action,
		"context":  req.Context,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal request: %w", err)
	}

	operation := func() (any, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("gateway: create request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := g.httpClient.Do(httpReq)
		if err != nil {
			log.Printf("[GATEWAY] transport error, will retry: %v", err)
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("gateway: read response: %w", err))
		}

		var decoded any
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("gateway: unmarshal response: %w", err))
		}
		return decoded, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
}

func (g *Gateway) emitAudit(req DispatchRequest, resp types.NormalizedActionResponse, durationMs int64, shadowBlocked bool) {
	if g.audit == nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[GATEWAY] audit sink panicked, swallowed: %v", r)
			}
		}()
		g.audit.RecordDispatch(types.AuditEntry{
			Timestamp:     time.Now().UTC(),
			Origin:        req.Origin,
			Priority:      req.Priority,
			ActionType:    req.Action.Type,
			Mode:          string(g.cfg.ExecutorMode),
			OK:            resp.OK,
			Error:         resp.Error,
			FailureCode:   resp.FailureCode,
			DurationMs:    durationMs,
			Context:       req.Context,
			ShadowBlocked: shadowBlocked,
		})
	}()
}
