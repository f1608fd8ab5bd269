package lifecycle

import (
	"fmt"
	"time"
)

// DisplayDuration floors d to whole seconds and clamps it at zero.
func DisplayDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Truncate(time.Second)
}

// FormatDuration renders a display duration as "1h 02m 03s", "2m 05s" or "9s".
func FormatDuration(d time.Duration) string {
	total := int64(DisplayDuration(d) / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
