package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims is what the client reads out of its own session token. The
// signature is not verified: the backend does that on every request.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that has passed.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

func ParseClaims(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("parsing session token: %w", err)
	}

	var c Claims
	for _, key := range []string{"userId", "id", "sub"} {
		if v := stringClaim(mc[key]); v != "" {
			c.UserID = v
			break
		}
	}
	if c.UserID == "" {
		return Claims{}, errors.New("session token has no user id")
	}

	switch exp := mc["exp"].(type) {
	case float64:
		c.ExpiresAt = time.Unix(int64(exp), 0)
	case json.Number:
		if n, err := exp.Int64(); err == nil {
			c.ExpiresAt = time.Unix(n, 0)
		}
	}
	return c, nil
}

func stringClaim(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	case json.Number:
		return t.String()
	}
	return ""
}
