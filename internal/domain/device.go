package domain

// DeviceTypes reported by the mobile clients at registration.
const (
	DeviceTypeIOS     = "ios"
	DeviceTypeAndroid = "android"
)

// PushToken is a registered device token. Tokens are created by the client
// registration flow; this service only ever deactivates them.
type PushToken struct {
	UserID     string `json:"user_id" dynamodbav:"user_id"`
	Token      string `json:"token" dynamodbav:"token"`
	DeviceType string `json:"device_type" dynamodbav:"device_type"`
	Active     bool   `json:"active" dynamodbav:"active"`
	SignedIn   bool   `json:"signed_in" dynamodbav:"signed_in"`
}

// TokenFilter restricts a token lookup to rows whose flags are set.
type TokenFilter struct {
	RequireActive   bool
	RequireSignedIn bool
}

// DeviceToken is one deliverable destination of a user.
type DeviceToken struct {
	Token      string
	DeviceType string
}

// TokenSet maps a user id to the devices it can be reached on.
type TokenSet map[string][]DeviceToken

// Count returns the total number of device tokens in the set.
func (s TokenSet) Count() int {
	n := 0
	for _, devices := range s {
		n += len(devices)
	}
	return n
}
