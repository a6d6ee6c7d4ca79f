package domain

// Ticket statuses and error codes returned by the push gateway.
const (
	TicketStatusOK    = "ok"
	TicketStatusError = "error"

	// TicketErrorDeviceNotRegistered means the app installation behind the
	// token no longer exists. The token must be retired.
	TicketErrorDeviceNotRegistered = "DeviceNotRegistered"
)

// PushMessage is one gateway message addressed to a single device token.
type PushMessage struct {
	To        string         `json:"to"`
	Sound     string         `json:"sound"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data"`
	Badge     int            `json:"badge"`
	ChannelID string         `json:"channelId"`
	Priority  string         `json:"priority"`
}

type TicketDetails struct {
	Error string `json:"error,omitempty"`
}

// Ticket is the gateway's per-message receipt, aligned with the request order.
type Ticket struct {
	Status  string         `json:"status"`
	ID      string         `json:"id,omitempty"`
	Message string         `json:"message,omitempty"`
	Details *TicketDetails `json:"details,omitempty"`
}

// Permanent reports whether the ticket says the destination is gone for good.
func (t Ticket) Permanent() bool {
	return t.Status == TicketStatusError && t.Details != nil && t.Details.Error == TicketErrorDeviceNotRegistered
}
