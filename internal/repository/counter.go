package repository

import "fmt"

// nextCounter advances the per-day order counter, wrapping back to 1 above
// the rollover limit. Numbers past the rollover repeat within the day; the
// display number is a ticket label, not an identifier.
func nextCounter(current, rollover int) int {
	next := current + 1
	if next > rollover {
		return 1
	}
	return next
}

// FormatNumber zero-pads a counter value into the display order number.
func FormatNumber(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}
