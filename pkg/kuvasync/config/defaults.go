// Package config provides configuration management for kuvasync.
package config

import "time"

// Default configuration values.
const (
	// DefaultPath is the mirror root used when none is given.
	DefaultPath = "data"

	DefaultSite = "https://tite.kuvat.fi"

	// DefaultRate is the request rate per call site, in requests per second.
	DefaultRate = 1.0

	DefaultConcurrency = 1

	DefaultPasswordEnv = "KUVATFI_PASSWORD"

	DefaultKeyringService = "kuvasync"

	DefaultHTTPTimeout = 60 * time.Second

	// DefaultRetentionDays is how long run journal entries are kept.
	DefaultRetentionDays = 30

	// EnvPrefix prefixes environment overrides, e.g. KUVASYNC_SITE.
	EnvPrefix = "KUVASYNC"
)

// DefaultVariants are the selector suffixes used to derive download URLs,
// smallest first.
var DefaultVariants = []string{"/_small.jpg", "/_full.jpg"}
