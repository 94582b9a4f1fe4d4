package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the parts of the access token the client cares about. The
// token is never verified here; the API does that on every request.
type Claims struct {
	Subject   string
	UserID    int64
	IsAdmin   bool
	ExpiresAt time.Time
}

func ParseClaims(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("parse access token: %w", err)
	}

	var c Claims
	sub, err := mc.GetSubject()
	if err != nil {
		return Claims{}, fmt.Errorf("token subject: %w", err)
	}
	c.Subject = sub
	if id, err := strconv.ParseInt(sub, 10, 64); err == nil {
		c.UserID = id
	}
	if admin, ok := mc["is_admin"].(bool); ok {
		c.IsAdmin = admin
	}
	exp, err := mc.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("token expiry: %w", err)
	}
	if exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
