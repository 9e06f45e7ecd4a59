package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/five82/galley/internal/order"
)

// RowID is a gateway row id. Tables keyed by uuid return strings and tables
// keyed by bigint return numbers; both decode to the same string form.
type RowID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *RowID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("row id is null")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RowID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("row id: %w", err)
	}
	*id = RowID(n.String())
	return nil
}

// Row mirrors a kitchen_orders row as returned by the gateway.
type Row struct {
	ID                 RowID         `json:"id"`
	OrderNumber        int64         `json:"order_number"`
	TransactionKey     string        `json:"transaction_key"`
	StoreCode          string        `json:"store_code"`
	POSCode            string        `json:"pos_code"`
	Items              []RowLineItem `json:"items"`
	TotalAmount        order.Money   `json:"total_amount"`
	TransactionDate    string        `json:"transaction_date"`
	TransactionRemarks string        `json:"transaction_remarks"`
	CreatedAt          time.Time     `json:"created_at"`
}

// RowLineItem is the line item shape stored inside the items jsonb column.
// The origin system writes these keys in camelCase.
type RowLineItem struct {
	ItemName    string        `json:"itemName"`
	ItemCode    string        `json:"itemCode"`
	Quantity    int           `json:"quantity"`
	TotalAmount order.Money   `json:"totalAmount"`
	ItemRemark  string        `json:"itemRemark"`
	Modifiers   []RowModifier `json:"modifiers"`
}

// RowModifier is a modifier entry inside a line item.
type RowModifier struct {
	ItemModifierName string `json:"itemModifierName"`
	Quantity         int    `json:"quantity"`
}

// ToOrder converts r into the display model. The status is always new: a
// row only reaches the client once.
func (r Row) ToOrder() order.Order {
	items := make([]order.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		var mods []order.Modifier
		for _, m := range it.Modifiers {
			mods = append(mods, order.Modifier{
				ItemModifierName: m.ItemModifierName,
				Quantity:         m.Quantity,
			})
		}
		items = append(items, order.LineItem{
			ItemName:    it.ItemName,
			ItemCode:    it.ItemCode,
			Quantity:    it.Quantity,
			TotalAmount: it.TotalAmount,
			ItemRemark:  strings.TrimSpace(it.ItemRemark),
			Modifiers:   mods,
		})
	}
	return order.Order{
		ID:              string(r.ID),
		OrderNumber:     r.OrderNumber,
		TransactionKey:  r.TransactionKey,
		StoreCode:       r.StoreCode,
		POSCode:         r.POSCode,
		Items:           items,
		TotalAmount:     r.TotalAmount,
		TransactionDate: r.TransactionDate,
		Remarks:         strings.TrimSpace(r.TransactionRemarks),
		Status:          order.StatusNew,
		CreatedAt:       r.CreatedAt,
	}
}

// ToOrders converts a batch, preserving order.
func ToOrders(rows []Row) []order.Order {
	out := make([]order.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToOrder())
	}
	return out
}

// IDs returns the row ids of rows as strings.
func IDs(rows []Row) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, string(r.ID))
	}
	return ids
}

// DecodeRows decodes each raw row on its own. A row that does not decode is
// logged with event row_invalid and skipped.
func DecodeRows(raw []json.RawMessage, logger *slog.Logger) []Row {
	var rows []Row
	for _, msg := range raw {
		var r Row
		if err := json.Unmarshal(msg, &r); err != nil {
			logger.Warn("dropping undecodable order row", "event", "row_invalid", "id", peekRowID(msg), "error", err)
			continue
		}
		rows = append(rows, r)
	}
	return rows
}

// peekRowID returns the row's id when at least that field decodes.
func peekRowID(msg json.RawMessage) string {
	var head struct {
		ID RowID `json:"id"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		return ""
	}
	return string(head.ID)
}
