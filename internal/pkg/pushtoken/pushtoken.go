// Package pushtoken recognises device tokens issued by the push gateway.
package pushtoken

import "regexp"

var grammar = regexp.MustCompile(`^(ExponentPushToken|ExpoPushToken)\[[A-Za-z0-9_-]+\]$`)

// Valid reports whether token has the gateway's token format. Anything else
// (raw FCM/APNs tokens, truncated values, whitespace) is never sent.
func Valid(token string) bool {
	return grammar.MatchString(token)
}
