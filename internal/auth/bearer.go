package auth

import "strings"

const bearerPrefix = "bearer "

// StripBearer removes a leading "Bearer " (any case) from an Authorization header value.
func StripBearer(header string) string {
	h := strings.TrimSpace(header)
	if len(h) >= len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(h[len(bearerPrefix):])
	}
	return h
}
