package gallery

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// deletePurpose scopes confirmation tokens so a session token can never
// stand in for one.
const deletePurpose = "photo:delete"

// ConfirmationTTL is how long a delete confirmation stays valid.
const ConfirmationTTL = 5 * time.Minute

// confirmer issues and checks delete confirmation tokens.
type confirmer struct {
	secret []byte
	now    func() time.Time
}

func (c *confirmer) issue(id string) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(ConfirmationTTL)
	claims := jwt.MapClaims{
		"sub":     id,
		"purpose": deletePurpose,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	return signed, expiresAt, err
}

// verify reports whether raw is an unexpired confirmation for id.
func (c *confirmer) verify(raw, id string) bool {
	if raw == "" {
		return false
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired(), jwt.WithSubject(id))
	if err != nil || !token.Valid {
		return false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	purpose, _ := claims["purpose"].(string)
	return purpose == deletePurpose
}
