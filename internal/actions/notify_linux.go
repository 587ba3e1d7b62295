//go:build linux

package actions

import "os/exec"

// OSNotify shows a desktop toast via notify-send.
type OSNotify struct{}

func (OSNotify) Show(title, body string) error {
	return exec.Command("notify-send", title, body).Run()
}
