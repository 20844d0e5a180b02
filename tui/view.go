package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5500"))
	labelStyle   = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("245"))
	focusedLabel = labelStyle.Foreground(lipgloss.Color("#FF5500")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	buttonStyle  = lipgloss.NewStyle().Padding(0, 2).Border(lipgloss.RoundedBorder())
	activeButton = buttonStyle.BorderForeground(lipgloss.Color("#FF5500")).Bold(true)
	selectedOpt  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5500")).Bold(true).Underline(true)
)

func (m Model) label(text string, f focus) string {
	if m.focus == f {
		return focusedLabel.Render(text)
	}
	return labelStyle.Render(text)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SoundCloud HLS Downloader"))
	b.WriteString("  " + dimStyle.Render("Logged in as "+m.username) + "\n\n")

	b.WriteString(m.label("URL", focusURL) + m.url.View() + "\n")
	b.WriteString(strings.Repeat(" ", 10) + m.trackLine() + "\n\n")

	b.WriteString(m.label("Filename", focusFilename) + m.filename.View() + "\n\n")

	opts := make([]string, len(m.codecs))
	for i, c := range m.codecs {
		if i == m.codecIdx {
			opts[i] = selectedOpt.Render(c.String())
		} else {
			opts[i] = dimStyle.Render(c.String())
		}
	}
	b.WriteString(m.label("Codec", focusCodec) + strings.Join(opts, "  ") + "\n\n")

	button := buttonStyle
	if m.focus == focusButton {
		button = activeButton
	}
	b.WriteString(button.Render("Download") + "\n\n")

	if m.downloading || m.total > 0 {
		b.WriteString(m.bar.View() + "\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s / %s", formatMillis(m.current), formatMillis(m.total))) + "\n")
	}
	if m.stage != "" {
		b.WriteString(m.stage + "\n")
	}
	if m.result != "" {
		if m.failed {
			b.WriteString(errorStyle.Render(m.result) + "\n")
		} else {
			b.WriteString(okStyle.Render(m.result) + "\n")
		}
	}

	b.WriteString("\n" + dimStyle.Render("tab: next field • ←/→: codec • enter: download • esc: cancel • ctrl+c: quit"))
	return b.String()
}

func (m Model) trackLine() string {
	switch {
	case m.resolving:
		return dimStyle.Render("Resolving...")
	case m.resolveErr != nil:
		return errorStyle.Render(m.resolveErr.Error())
	case m.track != nil:
		return okStyle.Render(fmt.Sprintf("%s (%s)", m.track.Title, formatMillis(m.track.Duration)))
	}
	return ""
}

func formatMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
