package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/galley/internal/order"
)

// renderHeader renders the status bar: order counts, last update and the
// sync badge.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth
	sep := bg.Spaces(2)

	parts := []string{bg.Render("galley", styles.Logo)}

	if m.health.IsOffline() {
		parts = append(parts, bg.Render("● OFFLINE", styles.DangerText))
	} else if m.health.Polling {
		parts = append(parts, bg.Render("● ONLINE", styles.SuccessText))
	} else {
		parts = append(parts, bg.Render("● PAUSED", styles.WarningText))
	}

	parts = append(parts,
		bg.Render("Orders:", styles.MutedText)+bg.Space()+
			bg.Render(fmt.Sprintf("%d", m.snapshot.Count()), styles.Text),
	)

	counts := m.snapshot.CountByStatus()
	statusParts := make([]string, 0, 3)
	for _, s := range []order.Status{order.StatusNew, order.StatusPreparing, order.StatusReady} {
		label := s.Label() + ":"
		if compact {
			label = s.Label()[:1] + ":"
		}
		countStyle := styles.MutedText
		if counts[s] > 0 {
			countStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(m.theme.StatusColor(string(s)))).
				Background(lipgloss.Color(m.theme.Surface))
		}
		statusParts = append(statusParts,
			bg.Render(label, styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", counts[s]), countStyle))
	}
	parts = append(parts, bg.Join(statusParts, "  •  "))

	if !m.lastUpdated.IsZero() {
		parts = append(parts, bg.Render("Updated "+m.lastUpdated.Format("15:04:05"), styles.MutedText))
	}
	if m.refreshing {
		parts = append(parts, bg.Render("syncing…", styles.InfoText))
	}

	return bg.FillLine(bg.Join(parts, "  ")+sep, m.width)
}

// renderCommandBar lists the keys for the current screen.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch {
	case m.screen == ScreenAdmin:
		commands = []cmd{
			{"c", "Copy token"},
			{"u", "Copy URL"},
			{"R", "New token"},
			{"esc", "Kitchen"},
			{"?", "More"},
		}
	case m.detailID != "":
		commands = []cmd{
			{"enter", "Next step"},
			{"esc", "Close"},
			{"?", "More"},
		}
	default:
		commands = []cmd{
			{"arrows", "Select"},
			{"enter", "Open"},
			{"r", "Refresh"},
			{"a", "Admin"},
			{"T", "Theme"},
			{"?", "More"},
		}
	}

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands))
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	return bg.FillLine(bg.Space()+bg.Join(segments, "  "), m.width)
}

// renderStatusLine shows the outcome of the last action.
func (m Model) renderStatusLine() string {
	styles := m.theme.Styles()
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return styles.DangerText.Render("! " + truncate(m.status, max(10, m.width-2)))
	}
	return styles.MutedText.Render(truncate(m.status, max(10, m.width)))
}
