package ratelimit

import "strings"

// KeyForAccount returns the throttle key for an account, or "" when unknown.
func KeyForAccount(accountID string) string {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ""
	}
	return "acct:" + accountID
}
