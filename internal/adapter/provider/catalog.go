package provider

import "strings"

// Endpoint describes one external OAuth provider this service can link.
type Endpoint struct {
	Name         string
	DisplayName  string
	AuthorizeURL string
	TokenURL     string
	ProfileURL   string
	ClientID     string
	ClientSecret string
	Scope        string
}

// Configured reports whether client credentials are present. Missing
// credentials are a deployment defect, surfaced as such by the flow.
func (e Endpoint) Configured() bool {
	return strings.TrimSpace(e.ClientID) != "" && strings.TrimSpace(e.ClientSecret) != ""
}

// Credentials carries the per-provider client settings from configuration.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Scope        string
}

// DefaultCatalog returns the supported provider endpoints keyed by name.
func DefaultCatalog(github, gitlab Credentials) map[string]Endpoint {
	return map[string]Endpoint{
		"github": {
			Name:         "github",
			DisplayName:  "GitHub",
			AuthorizeURL: "https://github.com/login/oauth/authorize",
			TokenURL:     "https://github.com/login/oauth/access_token",
			ProfileURL:   "https://api.github.com/user",
			ClientID:     github.ClientID,
			ClientSecret: github.ClientSecret,
			Scope:        github.Scope,
		},
		"gitlab": {
			Name:         "gitlab",
			DisplayName:  "GitLab",
			AuthorizeURL: "https://gitlab.com/oauth/authorize",
			TokenURL:     "https://gitlab.com/oauth/token",
			ProfileURL:   "https://gitlab.com/api/v4/user",
			ClientID:     gitlab.ClientID,
			ClientSecret: gitlab.ClientSecret,
			Scope:        gitlab.Scope,
		},
	}
}
