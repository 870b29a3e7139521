package app

import "testing"

func TestBuildDateYMD(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: ""},
		{name: "whitespace only", raw: "  \n", want: ""},
		{name: "rfc3339", raw: "2026-08-30T14:05:00Z", want: "2026-08-30"},
		{name: "date prefix", raw: "2026-08-30 14:05", want: "2026-08-30"},
		{name: "bare date", raw: "2026-08-30", want: "2026-08-30"},
		{name: "unparseable passes through", raw: "nightly-1234", want: "nightly-1234"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			orig := BuildDate
			defer func() { BuildDate = orig }()
			BuildDate = tc.raw

			if got := BuildDateYMD(); got != tc.want {
				t.Fatalf("BuildDateYMD() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildVersionWithDate(t *testing.T) {
	origVersion, origDate := Version, BuildDate
	defer func() { Version, BuildDate = origVersion, origDate }()

	Version = "1.2.0"
	BuildDate = "2026-08-30T00:00:00Z"
	if got := BuildVersionWithDate(); got != "1.2.0 (2026-08-30)" {
		t.Fatalf("BuildVersionWithDate() = %q", got)
	}

	BuildDate = ""
	if got := BuildVersionWithDate(); got != "1.2.0" {
		t.Fatalf("BuildVersionWithDate() without date = %q", got)
	}

	Version = "   "
	if got := BuildVersion(); got != "dev" {
		t.Fatalf("BuildVersion() for blank version = %q", got)
	}
}
