package render

import (
	"strings"

	"github.com/seckatie/urlhealth/internal/core"
)

// Resource is a resource with a fallback chain of one: Primary is tried
// first and Fallback substituted when it cannot be loaded. An empty Primary
// means the fallback is used directly.
type Resource struct {
	Primary  string `json:"primary,omitempty"`
	Fallback string `json:"fallback"`
}

// Src is what to put in the first load attempt. Failure is only known after
// the attempt, so the browser substitutes Fallback on error.
func (r Resource) Src() string {
	if r.Primary == "" {
		return r.Fallback
	}
	return r.Primary
}

// ProviderLogoURL builds a logo location from a template containing {host}.
func ProviderLogoURL(template string) func(host string) string {
	return func(host string) string {
		return strings.ReplaceAll(template, "{host}", host)
	}
}

// LogoFor resolves the logo resource for a result URL.
func LogoFor(rawURL string, logoURL func(string) string) Resource {
	fallback := Resource{Fallback: core.DefaultLogoPath}
	host := core.Hostname(rawURL)
	if host == "" {
		return fallback
	}
	if logoURL == nil {
		logoURL = ProviderLogoURL(core.DefaultLogoProvider)
	}
	return Resource{Primary: logoURL(host), Fallback: core.DefaultLogoPath}
}
