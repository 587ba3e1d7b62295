//go:build darwin

package actions

import (
	"fmt"
	"os/exec"
)

// OSNotify shows a desktop notification via osascript.
type OSNotify struct{}

func (OSNotify) Show(title, body string) error {
	script := fmt.Sprintf("display notification %q with title %q", body, title)
	return exec.Command("osascript", "-e", script).Run()
}
