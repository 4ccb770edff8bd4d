// internal/console/params.go
package console

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"tryit/pkg/credentials"
)

// Template markers the documentation collection embeds in endpoint paths.
// Displayed URLs are never rewritten beyond filling these two markers.
const (
	workspaceMarker = "{workspace}"
	flowIDMarker    = "{flowId}"
)

// SubstituteParams fills every occurrence of {workspace} and {flowId} in the
// URL. {flowId} resolves to the recurring flow id when the path contains a
// /fetch/ segment, and to the nerv flow id otherwise; nothing else (method,
// headers, body) influences the choice.
func SubstituteParams(rawURL string, creds credentials.WorkspaceCredentials) string {
	out := strings.ReplaceAll(rawURL, workspaceMarker, creds.Workspace)
	if !strings.Contains(out, flowIDMarker) {
		return out
	}
	flow := creds.FlowIDs.Nerv
	if strings.Contains(pathOf(out), "/fetch/") {
		flow = creds.FlowIDs.Recurring
	}
	return strings.ReplaceAll(out, flowIDMarker, flow)
}

func pathOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return u.Path
	}
	return raw
}

// Console prepares outbound "try it" requests: one credential resolution per
// call, shared between parameter substitution and the executor.
type Console struct {
	source credentials.Source
	log    *zap.SugaredLogger
}

func New(source credentials.Source, log *zap.SugaredLogger) *Console {
	return &Console{source: source, log: log}
}

// ResolveRequestURL substitutes template parameters for the workspace.
// Fail-open: when resolution fails the original URL goes out untouched, so
// the user observes the real upstream failure instead of a blocked call.
func (c *Console) ResolveRequestURL(ctx context.Context, rawURL, workspace string) (string, *credentials.WorkspaceCredentials) {
	creds, err := c.source.Resolve(ctx, workspace)
	if err != nil {
		c.log.Warnw("credential resolution failed, sending request unmodified", "workspace", workspace, "err", err)
		return rawURL, nil
	}
	return SubstituteParams(rawURL, creds), &creds
}
