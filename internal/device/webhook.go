package device

import (
	"encoding/json"
	"fmt"
	"strings"
)

// WebhookRequest describes how an origin system pushes orders for this
// display. galley does not serve it; the gateway does.
type WebhookRequest struct {
	URL   string
	Token string
}

// WebhookPayload is the JSON body the gateway expects.
type WebhookPayload struct {
	OrderNumber    int64             `json:"orderNumber"`
	TransactionKey string            `json:"transactionKey"`
	StoreCode      string            `json:"storeCode"`
	POSCode        string            `json:"posCode"`
	Items          []json.RawMessage `json:"items"`
	TotalAmount    float64           `json:"totalAmount"`
}

// AuthorizationHeader returns the header value integrators must send.
func (w WebhookRequest) AuthorizationHeader() string {
	return "Bearer " + w.Token
}

// Example renders a sample HTTP request for the admin screen.
func (w WebhookRequest) Example() string {
	payload := WebhookPayload{
		OrderNumber:    12345,
		TransactionKey: "...",
		StoreCode:      "STORE001",
		POSCode:        "POS001",
		Items:          []json.RawMessage{},
		TotalAmount:    150.50,
	}
	body, _ := json.MarshalIndent(payload, "", "  ")

	url := strings.TrimSpace(w.URL)
	if url == "" {
		url = "<webhook url not configured>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "POST %s\n", url)
	fmt.Fprintf(&b, "Authorization: %s\n", w.AuthorizationHeader())
	b.WriteString("Content-Type: application/json\n\n")
	b.Write(body)
	return b.String()
}
