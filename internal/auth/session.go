package auth

import "time"

// User is the signed-in account as reported by the identity provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Session is the provider session carried by the browser.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token has lapsed at now, allowing for skew.
func (s Session) Expired(now time.Time, skew time.Duration) bool {
	return !s.ExpiresAt.IsZero() && !now.Add(skew).Before(s.ExpiresAt)
}

// Valid reports whether s carries enough to authorize store calls.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.User.ID != ""
}
