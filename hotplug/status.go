package hotplug

import (
	"fmt"
	"strings"
)

// ParseStatus interprets a hot plug payload. Numeric payloads follow the display
// manager convention where 0 means connected.
func ParseStatus(payload string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "connected", "0":
		return true, nil
	case "disconnected", "1":
		return false, nil
	default:
		return false, fmt.Errorf("unknown hot plug status %q", payload)
	}
}
