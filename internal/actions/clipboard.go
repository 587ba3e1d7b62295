package actions

import (
	"log/slog"

	"golang.design/x/clipboard"
)

// ClipboardBackend is the Clipboard adapter backed by golang.design/x/clipboard.
// Unlike the teacher's clipboard package, this protocol's ClipBoard request
// is plain get/set — there is no Watch stream to serve, so the per-OS cgo
// change-notification glue the teacher carries alongside this library is not
// needed; the library's cross-platform Read/Write primitives alone suffice.
type ClipboardBackend struct {
	headless bool
}

// NewClipboard attempts clipboard.Init and falls back to a headless no-op
// backend on failure (e.g. a guest with no display server), the same
// fallback shape as the teacher's per-OS clip.New() constructors.
func NewClipboard() *ClipboardBackend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return &ClipboardBackend{headless: true}
	}
	return &ClipboardBackend{}
}

func (b *ClipboardBackend) Set(s string) error {
	if b.headless {
		return nil
	}
	clipboard.Write(clipboard.FmtText, []byte(s))
	return nil
}

func (b *ClipboardBackend) Get() (string, error) {
	if b.headless {
		return "", nil
	}
	return string(clipboard.Read(clipboard.FmtText)), nil
}
