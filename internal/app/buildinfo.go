package app

import (
	"fmt"
	"strings"
	"time"
)

// Version and BuildDate are filled by ldflags in release builds.
var (
	Version   = "dev"
	BuildDate = ""
)

// BuildVersion returns the release version, or "dev" for local builds.
func BuildVersion() string {
	if version := strings.TrimSpace(Version); version != "" {
		return version
	}

	return "dev"
}

// BuildDateYMD normalizes the injected build date to YYYY-MM-DD. It
// accepts RFC 3339 or any value that already starts with a date, and
// falls through to the raw value when neither matches.
func BuildDateYMD() string {
	raw := strings.TrimSpace(BuildDate)
	if raw == "" {
		return ""
	}

	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.Format(time.DateOnly)
	}

	if len(raw) >= len(time.DateOnly) {
		if _, err := time.Parse(time.DateOnly, raw[:len(time.DateOnly)]); err == nil {
			return raw[:len(time.DateOnly)]
		}
	}

	return raw
}

// BuildVersionWithDate renders "version (date)" for CLI banners.
func BuildVersionWithDate() string {
	if date := BuildDateYMD(); date != "" {
		return fmt.Sprintf("%s (%s)", BuildVersion(), date)
	}

	return BuildVersion()
}
