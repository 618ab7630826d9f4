package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// MachineID retrieves an ID identifying the machine. The ID is hashed
// per application so the raw machine ID is never published.
func MachineID() string {
	id, err := machineid.ProtectedID("xbee-gateway")
	if err != nil {
		if host, err := os.Hostname(); err == nil {
			return host
		}
		panic(err)
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
