package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/spin/tts"
	"github.com/dgnsrekt/spin/tts/spin"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/term"
)

var (
	keyword = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575")).
		Render

	paragraph = lipgloss.NewStyle().
			Width(78).
			Padding(0, 0, 0, 2).
			Render

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	offsetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("247"))

	markStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	separator = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Render(" │ ")
)

const defaultWidth = 80

// notifier prints boundary notifications to w, one per line. It returns nil
// when track reports nothing.
func notifier(w io.Writer, track tts.TrackMode) spin.Notifier {
	if track == tts.TrackWhole {
		return nil
	}
	width := defaultWidth
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			width = tw
		}
	}

	var mu sync.Mutex
	return spin.NotifierFunc(func(n tts.Notification) {
		line := formatNotification(n, width)
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintln(w, line)
	})
}

// formatNotification renders n on a single line no wider than width.
func formatNotification(n tts.Notification, width int) string {
	parts := []string{
		kindStyle.Render(fmt.Sprintf("%-8s", n.Kind)),
		offsetStyle.Render(fmt.Sprintf("%6d", n.TextOffset)),
	}

	var body string
	if n.Kind == tts.EventMark {
		body = markStyle.Render(n.Name)
	} else {
		body = strings.Join(strings.Fields(n.Text), " ")
	}
	parts = append(parts, body)

	return truncate.StringWithTail(strings.Join(parts, separator), uint(max(width, 1)), "…") //nolint:gosec
}
