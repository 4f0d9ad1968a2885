// Package format renders numbers, byte counts, and cron expressions
// for log lines and API responses.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// Bytes formats a byte count with 1024-based units.
// Example: Bytes(1572864) => "1.5 MB"
func Bytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v, idx := float64(n), 0
	for v >= 1024 && idx < len(byteUnits)-1 {
		v /= 1024
		idx++
	}
	return fmt.Sprintf("%.1f %s", v, byteUnits[idx])
}

var printer = message.NewPrinter(language.English)

// Number formats an integer with thousand separators.
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// NumberCompact formats an integer in compact notation, e.g. "1.2M".
func NumberCompact(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// Percentage formats a ratio already expressed in percent.
func Percentage(value float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, value)
}

// CronDescription returns a human-readable description of a 6-field
// (seconds-first) cron expression. Expressions outside the simple
// interval shapes are returned unchanged.
func CronDescription(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) != 6 {
		return expr
	}
	sec, min, hour := fields[0], fields[1], fields[2]
	rest := fields[3] + " " + fields[4] + " " + fields[5]
	if rest != "* * *" {
		return expr
	}

	switch {
	case sec == "0" && min == "0" && hour == "*":
		return "Every hour"
	case sec == "0" && min == "*" && hour == "*":
		return "Every minute"
	case sec == "*" && min == "*" && hour == "*":
		return "Every second"
	}
	if n, ok := step(sec); ok && min == "*" && hour == "*" {
		return fmt.Sprintf("Every %d seconds", n)
	}
	if n, ok := step(min); ok && sec == "0" && hour == "*" {
		return fmt.Sprintf("Every %d minutes", n)
	}
	if n, ok := step(hour); ok && sec == "0" && min == "0" {
		return fmt.Sprintf("Every %d hours", n)
	}
	return expr
}

func step(field string) (int, bool) {
	s, ok := strings.CutPrefix(field, "*/")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
