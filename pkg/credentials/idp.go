package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"tryit/pkg/config"
)

// TokenSource mints a bearer token for a set of credentials. Satisfied by
// the token broker; declared here so this package does not depend on it.
type TokenSource interface {
	GetToken(ctx context.Context, creds WorkspaceCredentials) (string, error)
}

// Cache key for the administrative token. Not a real workspace; the leading
// underscores keep it out of any tenant namespace.
const adminTokenKey = "__idp-admin"

// idpSource resolves credentials from the identity provider's admin API: it
// obtains an administrative token with the same client-credentials grant,
// then looks up the realm client whose public identifier matches the
// workspace and reads the credential fields from its custom attributes.
//
// Every failure here is soft. The source logs the reason and reports
// ErrNotFound so the chain falls through to static configuration.
type idpSource struct {
	cfg    config.Config
	tokens TokenSource
	client *http.Client
	log    *zap.SugaredLogger
}

func NewIdPSource(cfg config.Config, tokens TokenSource, client *http.Client, log *zap.SugaredLogger) Source {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &idpSource{cfg: cfg, tokens: tokens, client: client, log: log}
}

func (s *idpSource) Name() string { return "idp" }

// clientRecord is the subset of the admin API's client representation we
// read. Attributes hold the per-tenant credential fields.
type clientRecord struct {
	ClientID   string            `json:"clientId"`
	Attributes map[string]string `json:"attributes"`
}

func (s *idpSource) Resolve(ctx context.Context, workspace string) (WorkspaceCredentials, error) {
	base := strings.TrimRight(s.cfg.IDPBaseURL, "/")
	adminToken, err := s.tokens.GetToken(ctx, WorkspaceCredentials{
		Workspace:    adminTokenKey,
		ClientID:     s.cfg.IDPAdminClientID,
		ClientSecret: s.cfg.IDPAdminClientSecret,
		TokenURL:     fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", base, s.cfg.IDPRealm),
	})
	if err != nil {
		return s.miss(workspace, "admin token", err)
	}

	lookup := fmt.Sprintf("%s/admin/realms/%s/clients?clientId=%s", base, s.cfg.IDPRealm, url.QueryEscape(workspace))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookup, nil)
	if err != nil {
		return s.miss(workspace, "build lookup request", err)
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return s.miss(workspace, "provider unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return s.miss(workspace, "client lookup", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var records []clientRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return s.miss(workspace, "decode client list", err)
	}
	var rec *clientRecord
	for i := range records {
		if strings.EqualFold(records[i].ClientID, workspace) {
			rec = &records[i]
			break
		}
	}
	if rec == nil {
		return s.miss(workspace, "client record", fmt.Errorf("no client with clientId %q", workspace))
	}

	creds := WorkspaceCredentials{
		Workspace:    workspace,
		ClientID:     attr(rec.Attributes, FieldClientID),
		ClientSecret: attr(rec.Attributes, FieldClientSecret),
		TokenURL:     attr(rec.Attributes, FieldTokenURL),
		APIBaseURL:   attr(rec.Attributes, FieldAPIBaseURL),
		FlowIDs: FlowIDs{
			Nerv:      attr(rec.Attributes, FieldFlowNerv),
			Recurring: attr(rec.Attributes, FieldFlowRecurring),
		},
	}
	if !creds.Complete() {
		return s.miss(workspace, "attributes", fmt.Errorf("client id or secret attribute missing"))
	}
	return creds, nil
}

// miss logs the soft failure and reports a chain miss. The error never
// carries secrets and never propagates past the chain.
func (s *idpSource) miss(workspace, stage string, err error) (WorkspaceCredentials, error) {
	s.log.Infow("idp credential lookup fell through", "workspace", workspace, "stage", stage, "err", err)
	return WorkspaceCredentials{}, fmt.Errorf("idp %s: %w", stage, ErrNotFound)
}
