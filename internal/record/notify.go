package record

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/tOgg1/looper/internal/config"
)

// Notifier delivers a desktop notification.
type Notifier interface {
	Notify(title, body string) error
}

// NewNotifier builds a notifier from config, or nil when disabled.
func NewNotifier(cfg config.NotifyConfig) Notifier {
	if !cfg.Enabled {
		return nil
	}
	return &execNotifier{command: cfg.Command}
}

// execNotifier shells out to the platform notification tool.
type execNotifier struct {
	command string
}

func (n *execNotifier) Notify(title, body string) error {
	if n.command != "" {
		return exec.Command(n.command, title, body).Run()
	}

	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		return exec.Command("osascript", "-e", script).Run()
	default:
		return exec.Command("notify-send", title, body).Run()
	}
}
