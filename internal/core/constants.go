package core

import "time"

// Probe status values shared by the service, the client and the dashboard.
const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

// Timeout defaults
const (
	DefaultClientTimeout = 30 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
	DefaultLogoTimeout   = 5 * time.Second
	DefaultSessionTTL    = 30 * time.Minute
)

// Resource limits
const (
	MaxLogoSize = 512 * 1024 // 512KB
)

// HTTP client configuration
const (
	UserAgent = "Mozilla/5.0 (compatible; urlhealth/1.0)"
)

// DefaultLogoPath is the embedded asset served when no logo can be resolved.
const DefaultLogoPath = "/static/logo.svg"

// DefaultLogoProvider is the third-party logo service, keyed by hostname.
const DefaultLogoProvider = "https://logo.clearbit.com/{host}"
