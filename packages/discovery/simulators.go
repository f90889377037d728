package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

const runtimePrefix = "com.apple.CoreSimulator.SimRuntime."

// Simulator is an available simulator device
type Simulator struct {
	UDID    string `json:"udid"`
	Name    string `json:"name"`
	Runtime string `json:"runtime"`
	State   string `json:"state,omitempty"`
}

// Destination is the xcodebuild destination selecting this simulator
func (s Simulator) Destination() string {
	return "id=" + s.UDID
}

// Simulators lists available simulators via simctl, sorted by runtime then name
func (d *Discoverer) Simulators(ctx context.Context) ([]Simulator, error) {
	out, err := d.run(ctx, "xcrun", "simctl", "list", "devices", "available", "-j")
	if err != nil {
		return nil, fmt.Errorf("failed to list simulators: %w", err)
	}
	return ParseSimulators(out)
}

// ParseSimulators reads `simctl list devices -j`. Devices not marked
// available, or lacking a UDID or name, are skipped.
func ParseSimulators(data []byte) ([]Simulator, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON from simctl")
	}
	devices := gjson.GetBytes(data, "devices")
	if !devices.IsObject() {
		return nil, fmt.Errorf("missing 'devices' in simctl output")
	}

	var sims []Simulator
	devices.ForEach(func(key, list gjson.Result) bool {
		if !list.IsArray() {
			return true
		}
		runtime := RuntimeLabel(key.String())
		for _, dev := range list.Array() {
			if !dev.Get("isAvailable").Bool() {
				continue
			}
			s := Simulator{
				UDID:    dev.Get("udid").String(),
				Name:    dev.Get("name").String(),
				Runtime: runtime,
				State:   dev.Get("state").String(),
			}
			if s.UDID == "" || s.Name == "" {
				continue
			}
			sims = append(sims, s)
		}
		return true
	})

	sort.SliceStable(sims, func(i, j int) bool {
		if sims[i].Runtime != sims[j].Runtime {
			return sims[i].Runtime < sims[j].Runtime
		}
		return sims[i].Name < sims[j].Name
	})
	return sims, nil
}

// RuntimeLabel turns "com.apple.CoreSimulator.SimRuntime.iOS-17-0" into
// "iOS 17.0". Keys without the prefix are returned unchanged.
func RuntimeLabel(key string) string {
	rest, ok := strings.CutPrefix(key, runtimePrefix)
	if !ok {
		return key
	}
	platform, version, found := strings.Cut(rest, "-")
	if !found {
		return rest
	}
	return platform + " " + strings.ReplaceAll(version, "-", ".")
}
