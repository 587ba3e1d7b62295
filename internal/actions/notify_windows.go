//go:build windows

package actions

import "os/exec"

// OSNotify shows a desktop notification via msg.exe, the simplest toast
// primitive available without an extra Windows-only dependency.
type OSNotify struct{}

func (OSNotify) Show(title, body string) error {
	return exec.Command("msg", "*", "/TIME:10", title+": "+body).Run()
}
