package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var errUnauthenticated = errors.New("missing or invalid bearer token")

// Actor is the authenticated caller of a recovery action.
type Actor struct {
	ID    string
	Email string
}

type ActorClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens minted by the identity service.
// The subject claim is the actor id.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) ParseFromRequest(r *http.Request) (Actor, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 8 || !strings.EqualFold(hdr[:7], "bearer ") {
		return Actor{}, errUnauthenticated
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *Authenticator) parse(tok string) (Actor, error) {
	if len(a.secret) == 0 {
		return Actor{}, errUnauthenticated
	}
	claims := &ActorClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return Actor{}, errUnauthenticated
	}
	return Actor{ID: claims.Subject, Email: claims.Email}, nil
}
