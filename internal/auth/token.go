package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

const issuer = "lensdesk"

// Claims are the JWT claims carried by a session token. SID names the row
// in the sessions table; revocation is recorded there, not in the token.
type Claims struct {
	SID   string `json:"sid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (s *Service) sign(sess *model.Session) (string, error) {
	claims := Claims{
		SID:   sess.ID,
		Email: sess.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.SID == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// SessionID returns the session id named by a well-signed, unexpired token
// without consulting storage.
func (s *Service) SessionID(token string) (string, error) {
	c, err := s.parse(token)
	if err != nil {
		return "", err
	}
	return c.SID, nil
}
