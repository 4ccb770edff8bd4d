// internal/console/executor.go
package console

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tryit/pkg/broker"
	"tryit/pkg/credentials"
)

// AuthFailedError wraps any failure in the resolve-token-dispatch pipeline.
// The original cause is reachable through errors.Unwrap.
type AuthFailedError struct {
	Err error
}

func (e *AuthFailedError) Error() string { return "authenticated request failed: " + e.Err.Error() }
func (e *AuthFailedError) Unwrap() error { return e.Err }

// Request describes one outbound "try it" call. When Credentials is set it
// is used as-is (the caller already resolved it, e.g. for parameter
// substitution); otherwise Workspace is resolved through the executor's
// credential source.
type Request struct {
	Method      string
	URL         string
	Header      http.Header
	Body        []byte
	Workspace   string
	Credentials *credentials.WorkspaceCredentials
}

// Executor dispatches authenticated requests: bearer token from the broker,
// one bounded retry after a 401.
type Executor struct {
	source credentials.Source
	broker *broker.Broker
	client *http.Client
	log    *zap.SugaredLogger
}

func NewExecutor(source credentials.Source, b *broker.Broker, client *http.Client, log *zap.SugaredLogger) *Executor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Executor{source: source, broker: b, client: client, log: log}
}

// Do resolves credentials if needed and performs the authenticated dispatch.
// A 401 response invalidates the cached token and triggers exactly one retry
// with the same credentials; the retried response is returned verbatim.
func (e *Executor) Do(ctx context.Context, req Request) (*http.Response, error) {
	creds := req.Credentials
	if creds == nil {
		resolved, err := e.source.Resolve(ctx, req.Workspace)
		if err != nil {
			return nil, &AuthFailedError{Err: err}
		}
		creds = &resolved
	}
	return e.do(ctx, req, *creds, true)
}

func (e *Executor) do(ctx context.Context, req Request, creds credentials.WorkspaceCredentials, retryOn401 bool) (*http.Response, error) {
	token, err := e.broker.GetToken(ctx, creds)
	if err != nil {
		return nil, &AuthFailedError{Err: err}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, &AuthFailedError{Err: err}
	}
	// Clone the caller's headers; the Authorization header is ours.
	for k, vs := range req.Header {
		hreq.Header[k] = append([]string(nil), vs...)
	}
	hreq.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.client.Do(hreq)
	if err != nil {
		return nil, &AuthFailedError{Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized && retryOn401 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		e.broker.Invalidate(creds.Workspace)
		e.log.Infow("upstream returned 401, retrying once with a fresh token", "workspace", creds.Workspace, "url", req.URL)
		return e.do(ctx, req, creds, false)
	}
	return resp, nil
}
