package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// EndpointClient resolves credentials through the credential-serving HTTP
// endpoint. Used by executors running next to the console so that
// parameter substitution and authentication share one resolution per call.
type EndpointClient struct {
	baseURL string
	client  *http.Client
}

func NewEndpointClient(baseURL string, client *http.Client) *EndpointClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &EndpointClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *EndpointClient) Name() string { return "endpoint" }

func (c *EndpointClient) Resolve(ctx context.Context, workspace string) (WorkspaceCredentials, error) {
	u := c.baseURL + "/workspace/credentials"
	if workspace != "" {
		u += "?workspace=" + url.QueryEscape(workspace)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return WorkspaceCredentials{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return WorkspaceCredentials{}, fmt.Errorf("credentials endpoint: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK:
		var creds WorkspaceCredentials
		if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
			return WorkspaceCredentials{}, fmt.Errorf("credentials endpoint: decode: %w", err)
		}
		return creds, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return WorkspaceCredentials{}, fmt.Errorf("workspace %q: %w", workspace, ErrNotFound)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return WorkspaceCredentials{}, fmt.Errorf("credentials endpoint: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
