// internal/planner/remote.go
package planner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/docent/api/schemas"
	"github.com/xkilldash9x/docent/internal/config"
)

// RemotePlanner forwards plan requests to the chat endpoint of a running
// docent server, so a terminal session can reuse a long-lived server's
// credentials instead of carrying its own.
type RemotePlanner struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRemote initializes the forwarding planner.
func NewRemote(cfg config.PlannerConfig, logger *zap.Logger) (*RemotePlanner, error) {
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("remote planner requires a remote_url")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RemotePlanner{
		endpoint: strings.TrimRight(cfg.RemoteURL, "/") + "/api/v1/chat",
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger: logger.Named("planner.remote"),
	}, nil
}

// Plan posts the request to the remote chat endpoint and decodes the reply.
func (p *RemotePlanner) Plan(ctx context.Context, req *schemas.PlanRequest) (*schemas.PlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach the remote planner: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote planner response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("Remote planner returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("endpoint", p.endpoint),
		)
		return nil, remoteError(resp.StatusCode, respBody)
	}

	var planResp schemas.PlanResponse
	if err := json.Unmarshal(respBody, &planResp); err != nil {
		return nil, fmt.Errorf("failed to decode remote planner response: %w", err)
	}
	return &planResp, nil
}

// remoteError lifts the server's error envelope back into a plain error. The
// server already normalized provider failures into user-facing text, so the
// message passes through as is.
func remoteError(status int, body []byte) error {
	var er schemas.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message != "" {
		return errors.New(er.Message)
	}
	return fmt.Errorf("remote planner error: status %d, body: %s", status, body)
}
