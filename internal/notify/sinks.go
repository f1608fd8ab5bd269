package notify

import (
	"context"
	"errors"
	"io"

	"gta-grind-tracker/internal/model"
)

// ErrPermissionDenied is returned by platforms that cannot show
// notifications. The scheduler falls back to toasts only.
var ErrPermissionDenied = errors.New("notification permission denied")

// Sounder plays the alert sound.
type Sounder interface {
	Play(ctx context.Context) error
}

// Platform is the best-effort system notification surface.
type Platform interface {
	RequestPermission(ctx context.Context) error
	Show(ctx context.Context, title, body, tag string) (handle string, err error)
	Close(ctx context.Context, handle string) error
}

// Toaster shows transient in-app toasts.
type Toaster interface {
	Show(ctx context.Context, n model.PendingNotification, message string) (handle string, err error)
	Dismiss(ctx context.Context, handle string) error
}

// Listener observes every fired notification.
type Listener interface {
	NotificationFired(ctx context.Context, n model.PendingNotification, message string) error
}

// NopSounder is silent.
type NopSounder struct{}

func (NopSounder) Play(context.Context) error { return nil }

// BellSounder writes the terminal bell to w.
type BellSounder struct {
	W io.Writer
}

// Play writes a BEL byte.
func (b BellSounder) Play(context.Context) error {
	if b.W == nil {
		return nil
	}
	_, err := b.W.Write([]byte{'\a'})
	return err
}

// NopPlatform never gets permission.
type NopPlatform struct{}

func (NopPlatform) RequestPermission(context.Context) error { return ErrPermissionDenied }

func (NopPlatform) Show(context.Context, string, string, string) (string, error) {
	return "", ErrPermissionDenied
}

func (NopPlatform) Close(context.Context, string) error { return nil }

// NopToaster shows nothing.
type NopToaster struct{}

func (NopToaster) Show(context.Context, model.PendingNotification, string) (string, error) {
	return "", nil
}

func (NopToaster) Dismiss(context.Context, string) error { return nil }
