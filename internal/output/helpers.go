package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// ProgressBar renders a fixed-width bar with the completed percentage.
func ProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	percent := Percent(current, total)
	filled := max(0, min(int(percent/100*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	bar += strings.Repeat(" ", width-filled)
	bar += StyleSymbols["bullet"]
	return fmt.Sprintf("%s %.1f%%", bar, percent)
}

// Percent clamps current/total into [0, 100]. An empty total counts as done.
func Percent(current, total int64) float64 {
	if total <= 0 {
		return 100
	}
	current = max(0, min(current, total))
	return float64(current) / float64(total) * 100
}

func FormatBytes(n int64) string {
	return humanize.IBytes(uint64(max(n, 0)))
}

func FormatSpeed(n int64, elapsedSeconds float64) string {
	if elapsedSeconds <= 0 {
		return "0 B/s"
	}
	return humanize.IBytes(uint64(float64(max(n, 0))/elapsedSeconds)) + "/s"
}

// ThreadLine renders one mark per thread: filled when its range is done.
func ThreadLine(done []bool) string {
	var sb strings.Builder
	for _, d := range done {
		if d {
			sb.WriteString(successStyle.Render(StyleSymbols["thread"]))
		} else {
			sb.WriteString(pendingStyle.Render(StyleSymbols["thread"]))
		}
	}
	return sb.String()
}

func terminalHeight() int {
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 0 {
		return 24
	}
	return height
}

// IsTerminal reports whether stdout can host the live display.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
