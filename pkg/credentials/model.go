package credentials

// FlowIDs are the two named routing identifiers substituted into templated
// path segments. Recurring is chosen for paths containing a /fetch/ segment,
// Nerv for everything else.
type FlowIDs struct {
	Nerv      string `json:"nerv" yaml:"nerv"`
	Recurring string `json:"recurring" yaml:"recurring"`
}

// WorkspaceCredentials is the full set of tenant credentials for one
// workspace. Immutable once resolved; ClientSecret is never logged.
type WorkspaceCredentials struct {
	Workspace    string  `json:"workspace" yaml:"workspace"`
	ClientID     string  `json:"clientId" yaml:"clientId"`
	ClientSecret string  `json:"clientSecret" yaml:"clientSecret"`
	TokenURL     string  `json:"tokenUrl" yaml:"tokenUrl"`
	APIBaseURL   string  `json:"apiBaseUrl" yaml:"apiBaseUrl"`
	FlowIDs      FlowIDs `json:"flowIds" yaml:"flowIds"`
}

// Complete reports whether the credentials carry both halves of the client
// credential pair. Everything else may default from global configuration.
func (c WorkspaceCredentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}
