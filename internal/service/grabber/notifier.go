package grabber

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
)

// Notifier announces finished acquisitions to the user.
type Notifier interface {
	// Notify shows a notification with the given title and message.
	Notify(ctx context.Context, title, message string) error
}

// DesktopNotifier shows notifications through the freedesktop notify-send utility.
type DesktopNotifier struct {
	// icon is the optional icon path.
	icon string
	// binary is the notification utility looked up in PATH.
	binary string
}

// LogNotifier writes notifications to the log.
type LogNotifier struct{}

const (
	// notifySendBinary is the freedesktop notification utility.
	notifySendBinary = "notify-send"
	// notificationAppName is the application name shown by the notification daemon.
	notificationAppName = "media-grabber"
)

// NewNotifier creates a desktop notifier, or a log notifier when notifications are disabled.
func NewNotifier(cfg *config.Config) Notifier {
	if !cfg.EnableNotifications {
		return new(LogNotifier)
	}

	return &DesktopNotifier{
		icon:   cfg.NotificationIcon,
		binary: notifySendBinary,
	}
}

// Notify runs notify-send, returning ErrNotifierUnavailable when it is not installed.
func (n *DesktopNotifier) Notify(ctx context.Context, title, message string) error {
	path, err := exec.LookPath(n.binary)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotifierUnavailable, err)
	}

	args := []string{"--app-name", notificationAppName}
	if n.icon != "" {
		args = append(args, "--icon", n.icon)
	}

	args = append(args, "--", title, message)

	//nolint:gosec // The binary is resolved from a constant name and the arguments are not interpreted by a shell.
	if output, err := exec.CommandContext(ctx, path, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to send notification: %w: %s", err, output)
	}

	return nil
}

// Notify logs the notification.
func (n *LogNotifier) Notify(ctx context.Context, title, message string) error {
	logger.Infof(ctx, "%s %s", title, message)

	return nil
}
