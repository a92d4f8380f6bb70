package services

import (
	"os/exec"
	"strings"
)

// FolderPicker is the external folder-selection collaborator: it yields a
// selected folder path, a cancellation, or an error.
type FolderPicker interface {
	Pick() (path string, cancelled bool, err error)
}

// CommandFolderPicker shells out to an operator-configured dialog command
// (for example `zenity --file-selection --directory`) and reads the chosen
// path from its stdout. Empty output counts as cancellation.
type CommandFolderPicker struct {
	command string
}

// NewCommandFolderPicker creates a picker for the given shell command.
// An empty command yields a picker that always reports cancellation,
// which keeps headless setups working: courses can still be added by
// posting an explicit path.
func NewCommandFolderPicker(command string) *CommandFolderPicker {
	return &CommandFolderPicker{command: command}
}

// Pick runs the dialog command and returns the selected path.
func (p *CommandFolderPicker) Pick() (string, bool, error) {
	if strings.TrimSpace(p.command) == "" {
		return "", true, nil
	}

	out, err := exec.Command("sh", "-c", p.command).Output()
	if err != nil {
		// Dialog tools exit non-zero on cancel.
		if _, isExit := err.(*exec.ExitError); isExit {
			return "", true, nil
		}
		return "", false, err
	}

	selected := strings.TrimSpace(string(out))
	if selected == "" {
		return "", true, nil
	}
	return selected, false, nil
}
