package actions_test

import (
	"testing"

	"go.klb.dev/vmc/internal/actions"
)

// memClipboard is an in-memory Clipboard, the reference fake for the
// "swap for in-memory versions yields a fully testable server" design note;
// the dispatcher tests carry their own copy of it.
type memClipboard struct{ val string }

func (m *memClipboard) Set(s string) error   { m.val = s; return nil }
func (m *memClipboard) Get() (string, error) { return m.val, nil }

func TestMemClipboardRoundTrip(t *testing.T) {
	var c actions.Clipboard = &memClipboard{}
	if err := c.Set("hello"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "hello" {
		t.Fatalf("Get = %q, want hello", got)
	}
}

func TestOSEnvLookup(t *testing.T) {
	t.Setenv("VMC_TEST_ENV_KEY", "present")
	var e actions.Env = actions.OSEnv{}

	v, ok := e.Get("VMC_TEST_ENV_KEY")
	if !ok || v != "present" {
		t.Fatalf("Get = (%q, %v), want (present, true)", v, ok)
	}

	_, ok = e.Get("VMC_TEST_ENV_KEY_DOES_NOT_EXIST")
	if ok {
		t.Fatalf("expected missing key to report ok=false")
	}
}
