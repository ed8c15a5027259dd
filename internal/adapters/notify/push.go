package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PushGateway posts multicast notifications to an FCM-style HTTP endpoint.
type PushGateway struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

// NewPushGateway builds a gateway client.
func NewPushGateway(endpoint, serverKey string, client *http.Client) *PushGateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &PushGateway{endpoint: endpoint, serverKey: serverKey, client: client}
}

type pushRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    pushNotification  `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushResult counts per-token outcomes reported by the gateway.
type PushResult struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// Send pushes one notification to tokens.
func (p *PushGateway) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (PushResult, error) {
	if len(tokens) == 0 {
		return PushResult{}, nil
	}
	payload, err := json.Marshal(pushRequest{
		RegistrationIDs: tokens,
		Notification:    pushNotification{Title: title, Body: body},
		Data:            data,
	})
	if err != nil {
		return PushResult{}, fmt.Errorf("%w: encode: %w", ErrSend, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return PushResult{}, fmt.Errorf("%w: request: %w", ErrSend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.serverKey != "" {
		req.Header.Set("Authorization", "key="+p.serverKey)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return PushResult{}, fmt.Errorf("%w: post: %w", ErrSend, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return PushResult{}, fmt.Errorf("%w: gateway status %d: %s", ErrSend, resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out PushResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		// Gateways that answer 2xx without a body still accepted the batch.
		return PushResult{Success: len(tokens)}, nil
	}
	return out, nil
}
