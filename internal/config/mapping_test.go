package config

import (
	"os"
	"path/filepath"
	"testing"
)

const mappingYAML = `
measurement: chamber
tags:
  site: lab1
rename:
  t: temp_c
  h: humidity
drop:
  - crc
`

func writeMapping(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write mapping: %v", err)
	}

	return path
}

func TestLoadMapping(t *testing.T) {
	m, err := LoadMapping(writeMapping(t, mappingYAML))
	if err != nil {
		t.Fatalf("load mapping: %v", err)
	}

	if m.Measurement != "chamber" {
		t.Fatalf("measurement = %q, want chamber", m.Measurement)
	}
	if m.Tags["site"] != "lab1" {
		t.Fatalf("tags = %v, want site=lab1", m.Tags)
	}

	cases := []struct {
		raw  string
		want string
		keep bool
	}{
		{raw: "t", want: "temp_c", keep: true},
		{raw: "h", want: "humidity", keep: true},
		{raw: "pressure", want: "pressure", keep: true},
		{raw: "crc", keep: false},
	}
	for _, tc := range cases {
		got, keep := m.FieldName(tc.raw)
		if keep != tc.keep {
			t.Fatalf("FieldName(%q) keep = %v, want %v", tc.raw, keep, tc.keep)
		}
		if keep && got != tc.want {
			t.Fatalf("FieldName(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestLoadMappingRequiresMeasurement(t *testing.T) {
	if _, err := LoadMapping(writeMapping(t, "tags: {site: lab1}")); err == nil {
		t.Fatal("expected error for mapping without measurement")
	}
}

func TestLoadMappingBadYAML(t *testing.T) {
	if _, err := LoadMapping(writeMapping(t, "measurement: [")); err == nil {
		t.Fatal("expected yaml decode error")
	}
}
