package credentials

import (
	"context"
	"os"
	"strings"
)

// envSource reads credentials from flat configuration. Workspace-scoped keys
// (<workspace-lowercased>_<FIELD>) take precedence over the unscoped global
// keys. Always last in the chain.
type envSource struct{}

func NewEnvSource() Source { return envSource{} }

func (envSource) Name() string { return "env" }

func (envSource) Resolve(_ context.Context, workspace string) (WorkspaceCredentials, error) {
	get := func(field string) string {
		if v := os.Getenv(strings.ToLower(workspace) + "_" + field); v != "" {
			return v
		}
		return os.Getenv(field)
	}
	creds := WorkspaceCredentials{
		Workspace:    workspace,
		ClientID:     get(FieldClientID),
		ClientSecret: get(FieldClientSecret),
		TokenURL:     get(FieldTokenURL),
		APIBaseURL:   get(FieldAPIBaseURL),
		FlowIDs: FlowIDs{
			Nerv:      get(FieldFlowNerv),
			Recurring: get(FieldFlowRecurring),
		},
	}
	if !creds.Complete() {
		return WorkspaceCredentials{}, ErrNotFound
	}
	return creds, nil
}
