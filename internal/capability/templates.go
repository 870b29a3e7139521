package capability

import (
	"fmt"
	"regexp"
	"strconv"
)

// A template matches one family of model strings. Templates are evaluated
// in order, vendor-specific patterns before generic ones; the first
// structurally valid match wins.
type template struct {
	name    string
	family  Family
	pattern *regexp.Regexp
}

var templates = []template{
	// RC-2SP6T-A12: network-controlled RC series.
	{
		name:    "rc-series",
		family:  FamilyRC,
		pattern: regexp.MustCompile(`^RC-(\d+)([A-Z])P(\d+)T-(A\d+)$`),
	},
	// USB-1SP8T-852H: USB-SCPI series.
	{
		name:    "usb-series",
		family:  FamilyUSB,
		pattern: regexp.MustCompile(`^USB-(\d+)([A-Z])P(\d+)T-([0-9A-Z]+)$`),
	},
	// Any other vendor prefix with the same switch grammar.
	{
		name:    "generic-spxt",
		family:  FamilyRC,
		pattern: regexp.MustCompile(`^[A-Z]+-(\d+)([A-Z])P(\d+)T-([0-9A-Z]+)$`),
	},
}

// Classify parses a model string against the known templates and returns a
// fully populated record or ErrUnclassified. It never returns a partially
// populated record.
func Classify(model, serial string) (Record, error) {
	for _, tpl := range templates {
		m := tpl.pattern.FindStringSubmatch(model)
		if m == nil {
			continue
		}

		switches, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		states, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		if switches < 1 || states < 1 {
			continue
		}

		return Record{
			Model:  model,
			Serial: serial,
			Family: tpl.family,
			Switch: &SwitchCaps{
				Switches: switches,
				Poles:    rune(m[2][0]),
				States:   states,
				Revision: m[4],
			},
		}, nil
	}

	return Record{}, fmt.Errorf("%w: %q", ErrUnclassified, model)
}
