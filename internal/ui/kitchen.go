package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/galley/internal/order"
)

// handleKitchenKey processes keyboard input for the card grid.
func (m Model) handleKitchenKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Admin) {
		m.screen = ScreenAdmin
		return m, m.tailLog()
	}

	orders := m.snapshot.Orders
	if len(orders) == 0 {
		return m, nil
	}
	idx := m.selectedIndex()
	cols := gridColumns(m.width)

	switch {
	case key.Matches(msg, m.keys.Right):
		idx++
	case key.Matches(msg, m.keys.Left):
		idx--
	case key.Matches(msg, m.keys.Down):
		if idx+cols < len(orders) {
			idx += cols
		}
	case key.Matches(msg, m.keys.Up):
		if idx-cols >= 0 {
			idx -= cols
		}
	case key.Matches(msg, m.keys.Top):
		idx = 0
	case key.Matches(msg, m.keys.Open):
		m.detailID = orders[idx].ID
		return m, nil
	default:
		return m, nil
	}

	idx = max(0, min(idx, len(orders)-1))
	m.selectedID = orders[idx].ID
	return m, nil
}

// selectedIndex returns the grid position of the selected order. The
// selection follows the order id, so new arrivals prepended to the board do
// not move it to a different ticket.
func (m Model) selectedIndex() int {
	if idx := order.IndexOf(m.snapshot.Orders, m.selectedID); idx >= 0 {
		return idx
	}
	return 0
}

// clampSelection keeps the selection on an order that exists.
func (m *Model) clampSelection() {
	if len(m.snapshot.Orders) == 0 {
		m.selectedID = ""
		return
	}
	if order.IndexOf(m.snapshot.Orders, m.selectedID) < 0 {
		m.selectedID = m.snapshot.Orders[0].ID
	}
}

// renderKitchen renders the header, command bar and card grid.
func (m Model) renderKitchen() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderGrid(max(1, m.height-3)))
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	return b.String()
}

// renderGrid lays the cards out in rows, scrolled so the selected card is
// visible within height lines.
func (m Model) renderGrid(height int) string {
	styles := m.theme.Styles()
	orders := m.snapshot.Orders
	if len(orders) == 0 {
		msg := styles.MutedText.Render("No active orders. New tickets appear here automatically.")
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, msg)
	}

	cols := gridColumns(m.width)
	cardWidth := max(minCardText+4, (m.width-cardGap*(cols-1))/cols)
	visibleRows := max(1, height/cardHeight)

	selected := m.selectedIndex()
	firstRow := 0
	if selRow := selected / cols; selRow >= visibleRows {
		firstRow = selRow - visibleRows + 1
	}

	gap := strings.Repeat(" ", cardGap)
	var rows []string
	for row := firstRow; row < firstRow+visibleRows; row++ {
		start := row * cols
		if start >= len(orders) {
			break
		}
		end := min(start+cols, len(orders))
		cards := make([]string, 0, cols*2)
		for i := start; i < end; i++ {
			if i > start {
				cards = append(cards, gap)
			}
			cards = append(cards, m.renderCard(orders[i], cardWidth, i == selected))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}

	grid := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return lipgloss.NewStyle().Height(height).MaxHeight(height).Render(grid)
}

// renderCard renders one ticket. The border takes the status color; the
// selected card gets a thick border.
func (m Model) renderCard(o order.Order, width int, selected bool) string {
	styles := m.theme.Styles()
	inner := max(minCardText, width-4)

	title := styles.Text.Bold(true).Render(fmt.Sprintf("#%d", o.OrderNumber))
	chip := styles.StatusStyle(string(o.Status)).Render(strings.ToUpper(o.Status.Label()))
	pad := max(1, inner-lipgloss.Width(title)-lipgloss.Width(chip))
	header := title + strings.Repeat(" ", pad) + chip

	when := ""
	if !o.CreatedAt.IsZero() {
		when = o.CreatedAt.Local().Format("15:04") + " • " + formatAge(m.now(), o.CreatedAt)
	}

	lines := []string{
		header,
		styles.MutedText.Render(truncate(when, inner)),
		styles.Text.Render(truncate(fmt.Sprintf("Store %s • POS %s", dash(o.StoreCode), dash(o.POSCode)), inner)),
		styles.Text.Render(truncate(fmt.Sprintf("%s • %s", plural(o.ItemCount(), "item"), o.TotalAmount.Display()), inner)),
		styles.MutedText.Render(truncate(itemSummary(o), inner)),
	}
	if o.Remarks != "" {
		lines = append(lines, styles.WarningText.Render(truncate("Note: "+o.Remarks, inner)))
	} else {
		lines = append(lines, "")
	}

	border := lipgloss.RoundedBorder()
	borderColor := m.theme.StatusColor(string(o.Status))
	if selected {
		border = lipgloss.ThickBorder()
		borderColor = m.theme.BorderFocus
	}

	return lipgloss.NewStyle().
		Border(border).
		BorderForeground(lipgloss.Color(borderColor)).
		Padding(0, 1).
		Width(width - 2).
		Height(cardHeight - 2).
		Render(strings.Join(lines, "\n"))
}

// itemSummary lists item names with quantities on one line.
func itemSummary(o order.Order) string {
	parts := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		parts = append(parts, fmt.Sprintf("%dx %s", it.Quantity, it.ItemName))
	}
	return strings.Join(parts, ", ")
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
