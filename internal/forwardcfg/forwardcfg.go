// Package forwardcfg reads the guest-side port-forward configuration file
// the heartbeat loop (C9) advertises to the server.
package forwardcfg

import (
	"encoding/json"
	"errors"
	"os"
	"runtime"

	"go.klb.dev/vmc/internal/protocol"
)

// DefaultPath returns the well-known forward-config path for the running
// OS: C:\etc\vmc_port_forward.json on Windows, /etc/vmc_port_forward.json
// elsewhere.
func DefaultPath() string {
	if runtime.GOOS == "windows" {
		return `C:\etc\vmc_port_forward.json`
	}
	return "/etc/vmc_port_forward.json"
}

type fileSchema struct {
	Forwards []protocol.PortforwardSpec `json:"forwards"`
}

// Read loads the forward list at path. A missing file is not an error and
// yields an empty list.
func Read(path string) (protocol.PortforwardList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return protocol.PortforwardList{}, nil
		}
		return nil, err
	}

	var schema fileSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, err
	}
	return protocol.PortforwardList(schema.Forwards), nil
}
