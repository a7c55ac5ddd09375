package tokens

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the payload of access tokens minted by the identity
// service. Subject holds the user id.
type AccessClaims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	IsStaff  bool     `json:"is_staff"`
	jwt.RegisteredClaims
}

func AccessClaimsFromToken(TokenStr string, AccessSecret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(TokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return AccessSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return &claims, nil
}

// SignAccessToken is used by tests and local tooling; production tokens
// come from the identity service.
func SignAccessToken(claims AccessClaims, AccessSecret []byte) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(AccessSecret)
}
