// Package auth embeds access tokens into remote git URLs and mints
// short-lived tokens from a GitHub App installation.
package auth

import (
	"strings"

	"github.com/verylucky01/repo-sync/giturl"
)

// Style determines the userinfo format a hosting provider expects for
// token based authentication over https.
type Style string

const (
	// StyleBasic embeds the token as the username with the fixed
	// 'x-oauth-basic' password. (github.com style)
	StyleBasic Style = "basic"

	// StyleOAuth2 embeds the token as the password of the fixed
	// 'oauth2' user. (gitcode.com/gitlab style)
	StyleOAuth2 Style = "oauth2"
)

// Provider maps a host to the token style it expects.
// host matching is done by substring so 'gitlab' will match self-hosted
// instances like 'gitlab.example.com'.
type Provider struct {
	// HostMarker is matched against the host section of the remote URL
	HostMarker string `yaml:"host_marker"`

	// Style is the userinfo format, 'basic' or 'oauth2'
	Style Style `yaml:"style"`
}

// DefaultProviders returns the provider mapping used when config
// doesn't specify one.
func DefaultProviders() []Provider {
	return []Provider{
		{HostMarker: "github.com", Style: StyleBasic},
		{HostMarker: "gitcode.com", Style: StyleOAuth2},
	}
}

// URL returns given remote URL with the token embedded in the userinfo
// section in the format expected by the first matching provider.
// the URL is returned unchanged if it is not https, the token is empty
// or no provider matches, in that case the caller must make sure the
// remote is reachable by other means (eg. a credential helper).
func URL(rawURL, token string, providers []Provider) string {
	if token == "" || !strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}

	// match on the host section when URL is parsable, fall back to
	// matching on the whole URL
	matchOn := rawURL
	if gURL, err := giturl.Parse(rawURL); err == nil {
		matchOn = gURL.Host
	}

	for _, p := range providers {
		if p.HostMarker == "" || !strings.Contains(matchOn, p.HostMarker) {
			continue
		}
		rest := strings.TrimPrefix(rawURL, "https://")
		switch p.Style {
		case StyleBasic:
			return "https://" + token + ":x-oauth-basic@" + rest
		case StyleOAuth2:
			return "https://oauth2:" + token + "@" + rest
		}
	}

	return rawURL
}
