// Package notify delivers fire-and-forget desktop notifications over the
// session D-Bus. Delivery failures are logged and never propagated.
package notify

import (
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// Notifier delivers a short user-facing message. Implementations must not
// return errors to callers; notification is best-effort by contract.
type Notifier interface {
	Notify(summary, body string)
}

const (
	notifyBusName    = "org.freedesktop.Notifications"
	notifyObjectPath = "/org/freedesktop/Notifications"
	notifyMethod     = "org.freedesktop.Notifications.Notify"
)

// Desktop sends notifications through org.freedesktop.Notifications.
type Desktop struct {
	conn    *dbus.Conn
	appName string
	logger  *slog.Logger
}

// NewDesktop connects to the session bus. Callers should fall back to Nop
// when the bus is unavailable (headless hosts, CI).
func NewDesktop(appName string, logger *slog.Logger) (*Desktop, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Desktop{
		conn:    conn,
		appName: appName,
		logger:  logger.With("component", "notify"),
	}, nil
}

// Notify shows a transient desktop toast.
func (d *Desktop) Notify(summary, body string) {
	obj := d.conn.Object(notifyBusName, dbus.ObjectPath(notifyObjectPath))
	call := obj.Call(notifyMethod, 0,
		d.appName,
		uint32(0), // replaces_id
		"",        // app_icon
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		int32(-1), // server-default expiry
	)
	if call.Err != nil {
		d.logger.Warn("notification failed", "summary", summary, "error", call.Err)
	}
}

// Nop discards all notifications.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(summary, body string) {}
