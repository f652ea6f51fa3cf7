package telemetry

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// DeviceID retrieves the stable identity of this board, falling back
// to the hostname when the machine ID is unavailable.
func DeviceID() string {
	if id, err := machineid.ProtectedID("duet-dash"); err == nil {
		return id[:12]
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}
