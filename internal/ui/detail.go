package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/galley/internal/order"
)

// nextActionLabel names the one step offered for an order in status s.
func nextActionLabel(s order.Status) string {
	switch s {
	case order.StatusNew:
		return "Start preparing"
	case order.StatusPreparing:
		return "Mark ready"
	case order.StatusReady:
		return "Complete"
	default:
		return ""
	}
}

// handleDetailKey processes keyboard input while an order is open.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.detailID = ""
		return m, nil

	case key.Matches(msg, m.keys.Action):
		o, ok := m.detailOrder()
		if !ok {
			m.detailID = ""
			return m, nil
		}
		if o.Status == order.StatusReady {
			m.modal = newConfirm(
				fmt.Sprintf("Complete order #%d?", o.OrderNumber),
				"It will be removed from the board. This cannot be undone.",
				completeCmd(m.ctx, m.board, o.ID),
			)
			return m, nil
		}
		return m, advanceCmd(m.ctx, m.board, o.ID)
	}
	return m, nil
}

// renderDetail renders the order overlay with line items and the next action.
func (m Model) renderDetail(o order.Order) string {
	styles := m.theme.Styles()
	width := min(max(40, m.width-10), 80)
	inner := width - 6

	var b strings.Builder
	title := styles.Text.Bold(true).Render(fmt.Sprintf("Order #%d", o.OrderNumber))
	chip := styles.StatusStyle(string(o.Status)).Render(strings.ToUpper(o.Status.Label()))
	b.WriteString(title + "  " + chip)
	b.WriteString("\n")

	meta := []string{fmt.Sprintf("Store %s", dash(o.StoreCode)), fmt.Sprintf("POS %s", dash(o.POSCode))}
	if !o.CreatedAt.IsZero() {
		meta = append(meta, o.CreatedAt.Local().Format("Jan 2 15:04")+" ("+formatAge(m.now(), o.CreatedAt)+")")
	}
	b.WriteString(styles.MutedText.Render(strings.Join(meta, " • ")))
	b.WriteString("\n")
	if o.TransactionKey != "" || o.TransactionDate != "" {
		ref := strings.TrimSpace(o.TransactionKey + " " + o.TransactionDate)
		b.WriteString(styles.FaintText.Render(truncate("Ref "+ref, inner)))
		b.WriteString("\n")
	}
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", inner)))
	b.WriteString("\n")

	if len(o.Items) == 0 {
		b.WriteString(styles.MutedText.Render("No line items"))
		b.WriteString("\n")
	}
	for _, it := range o.Items {
		b.WriteString(renderLineItem(styles, it, inner))
	}

	b.WriteString(styles.FaintText.Render(strings.Repeat("─", inner)))
	b.WriteString("\n")
	totalLabel := "Total"
	total := o.TotalAmount.Display()
	b.WriteString(styles.Text.Bold(true).Render(totalLabel + strings.Repeat(" ", max(1, inner-len(totalLabel)-len(total))) + total))
	b.WriteString("\n")

	if o.Remarks != "" {
		b.WriteString("\n")
		b.WriteString(styles.WarningText.Render(lipgloss.NewStyle().Width(inner).Render("Note: " + o.Remarks)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if action := nextActionLabel(o.Status); action != "" {
		b.WriteString(styles.AccentText.Bold(true).Render("enter") + styles.Text.Render(" "+action))
		b.WriteString(styles.MutedText.Render("    esc close"))
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.renderStatusLine())
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.StatusColor(string(o.Status)))).
		Padding(1, 2).
		Width(width)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

func renderLineItem(styles Styles, it order.LineItem, inner int) string {
	var b strings.Builder
	name := fmt.Sprintf("%dx %s", it.Quantity, it.ItemName)
	amount := it.TotalAmount.Display()
	name = truncate(name, max(4, inner-len(amount)-1))
	b.WriteString(styles.Text.Render(name + strings.Repeat(" ", max(1, inner-lipgloss.Width(name)-len(amount))) + amount))
	b.WriteString("\n")
	for _, mod := range it.Modifiers {
		b.WriteString(styles.MutedText.Render(truncate(fmt.Sprintf("   + %dx %s", mod.Quantity, mod.ItemModifierName), inner)))
		b.WriteString("\n")
	}
	if it.ItemRemark != "" {
		b.WriteString(styles.WarningText.Render(truncate("   ! "+it.ItemRemark, inner)))
		b.WriteString("\n")
	}
	return b.String()
}
