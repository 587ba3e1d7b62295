// Package mountlist reads the guest-side path-translation configuration
// consumed by the guest command client's to-win-path sub-command. The core
// protocol does not prescribe its semantics (spec.md §6); this package
// implements the file schema present in prior guest tooling, kept as a
// small, separate consumer never touched by the dispatcher.
package mountlist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Mount is one guest-mount-to-host-path translation entry.
type Mount struct {
	EndPoint   string `json:"end-point"`
	MountPoint string `json:"mount-point"`
	RemotePath string `json:"remote-path"`
}

type fileSchema struct {
	Mounts []Mount `json:"mount-list"`
}

// DefaultPath returns $HOME/.mount_list.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mount_list.json"
	}
	return filepath.Join(home, ".mount_list.json")
}

// Read loads the mount list at path, expanding a leading "~" in each
// entry's MountPoint against $HOME. A missing file yields an empty list.
func Read(path string) ([]Mount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var schema fileSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, err
	}

	home, _ := os.UserHomeDir()
	for i := range schema.Mounts {
		schema.Mounts[i].MountPoint = expandHome(schema.Mounts[i].MountPoint, home)
	}
	return schema.Mounts, nil
}

func expandHome(p, home string) string {
	if home == "" || !strings.HasPrefix(p, "~") {
		return p
	}
	return home + strings.TrimPrefix(p, "~")
}

// TranslateToHostPath maps a guest-visible path under one of the mounts to
// the corresponding host-visible path, using the longest matching
// MountPoint prefix. Returns the input path unchanged if no mount matches.
func TranslateToHostPath(mounts []Mount, guestPath string) string {
	var best *Mount
	for i := range mounts {
		m := &mounts[i]
		if strings.HasPrefix(guestPath, m.MountPoint) {
			if best == nil || len(m.MountPoint) > len(best.MountPoint) {
				best = m
			}
		}
	}
	if best == nil {
		return guestPath
	}
	rel := strings.TrimPrefix(guestPath, best.MountPoint)
	return filepath.Join(best.RemotePath, rel)
}
