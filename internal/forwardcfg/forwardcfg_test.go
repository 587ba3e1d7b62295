package forwardcfg_test

import (
	"os"
	"path/filepath"
	"testing"

	"go.klb.dev/vmc/internal/forwardcfg"
)

func TestReadMissingFileIsEmptyList(t *testing.T) {
	list, err := forwardcfg.Read(filepath.Join(t.TempDir(), "does_not_exist.json"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("len(list) = %d, want 0", len(list))
	}
}

func TestReadParsesForwards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmc_port_forward.json")
	content := `{"forwards": [{"host_port": 9000, "guest_port": 22}, {"host_port": 9001, "guest_port": 80}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	list, err := forwardcfg.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if list[0].HostPort != 9000 || list[0].GuestPort != 22 {
		t.Fatalf("unexpected first entry: %+v", list[0])
	}
}

func TestReadMalformedJSONErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmc_port_forward.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := forwardcfg.Read(path); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}

func TestDefaultPathIsNonEmpty(t *testing.T) {
	if forwardcfg.DefaultPath() == "" {
		t.Fatalf("expected non-empty default path")
	}
}
