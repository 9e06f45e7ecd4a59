package ui

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/galley/internal/device"
	"github.com/five82/galley/internal/logging"
)

// handleAdminKey processes keyboard input on the admin screen.
func (m Model) handleAdminKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Admin):
		m.screen = ScreenKitchen
		return m, nil

	case key.Matches(msg, m.keys.CopyToken):
		return m, copyCmd(m.copyText, "token", m.identity.Token)

	case key.Matches(msg, m.keys.CopyURL):
		return m, copyCmd(m.copyText, "webhook URL", m.webhookURL)

	case key.Matches(msg, m.keys.RegenerateToken):
		if m.store == nil {
			return m, nil
		}
		m.modal = newConfirm(
			"Regenerate device token?",
			"The current token stops matching new orders. The webhook sender must be updated with the new token.",
			regenerateTokenCmd(m.ctx, m.store),
		)
		return m, nil
	}
	return m, nil
}

func logLineStyle(styles Styles, line string) lipgloss.Style {
	switch logging.LineLevel(line) {
	case slog.LevelError:
		return styles.DangerText
	case slog.LevelWarn:
		return styles.WarningText
	case slog.LevelDebug:
		return styles.FaintText
	default:
		return styles.MutedText
	}
}

// renderAdmin shows pairing details and the integrator request example.
func (m Model) renderAdmin() string {
	styles := m.theme.Styles()
	width := max(40, m.width-4)

	field := func(label, value string) string {
		labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Muted)).Width(14)
		if value == "" {
			return labelStyle.Render(label) + styles.FaintText.Render("not set")
		}
		return labelStyle.Render(label) + styles.Text.Render(truncateMiddle(value, width-16))
	}

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Device pairing"))
	b.WriteString("\n\n")
	b.WriteString(field("Device ID", m.identity.DeviceID))
	b.WriteString("\n")
	b.WriteString(field("Token", m.identity.Token))
	b.WriteString("\n")
	b.WriteString(field("Webhook URL", m.webhookURL))
	b.WriteString("\n\n")

	b.WriteString(styles.AccentText.Bold(true).Render("Example request"))
	b.WriteString("\n")
	example := device.WebhookRequest{URL: m.webhookURL, Token: m.identity.Token}.Example()
	b.WriteString(lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(m.theme.Border)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Padding(0, 1).
		Render(example))

	if m.logPath != "" {
		b.WriteString("\n\n")
		b.WriteString(styles.AccentText.Bold(true).Render("Recent activity"))
		b.WriteString("\n")
		if len(m.logLines) == 0 {
			b.WriteString(styles.FaintText.Render("No log records yet"))
		}
		for i, line := range m.logLines {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(logLineStyle(styles, line).Render(truncate(line, width-4)))
		}
	}

	body := lipgloss.NewStyle().Padding(1, 2).Render(b.String())

	var out strings.Builder
	out.WriteString(m.renderHeader())
	out.WriteString("\n")
	out.WriteString(m.renderCommandBar())
	out.WriteString("\n")
	out.WriteString(body)
	out.WriteString("\n")
	out.WriteString(m.renderStatusLine())
	return out.String()
}
