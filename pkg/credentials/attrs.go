package credentials

import "strings"

// Canonical field names, shared by the static env source (as env keys), the
// identity-provider source (as client attribute keys) and the workspace file
// source.
const (
	FieldClientID      = "AUTH_CLIENT_ID"
	FieldClientSecret  = "AUTH_CLIENT_SECRET"
	FieldTokenURL      = "AUTH_TOKEN_URL"
	FieldAPIBaseURL    = "API_BASE_URL"
	FieldFlowNerv      = "FLOW_ID_NERV"
	FieldFlowRecurring = "FLOW_ID_RECURRING"
)

// attr looks a field up in an attribute map with a fixed precedence: the key
// as given, then its upper-case form, then its lower-case form. First
// non-empty value wins. IdP admin consoles are inconsistent about attribute
// key casing, so the lookup must not be.
func attr(m map[string]string, key string) string {
	if v := m[key]; v != "" {
		return v
	}
	if v := m[strings.ToUpper(key)]; v != "" {
		return v
	}
	return m[strings.ToLower(key)]
}
