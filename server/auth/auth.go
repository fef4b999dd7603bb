// Package auth implements bearer-token authentication for the API.
package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/apsa-ai/nexus/store"
)

const (
	// Issuer is the JWT issuer claim.
	Issuer = "nexus"
	// KeyID is the version of the signing key.
	KeyID = "v1"
	// AccessTokenAudience is the audience claim of access tokens.
	AccessTokenAudience = "user.access-token"
	// AccessTokenDuration is the lifetime of issued access tokens.
	AccessTokenDuration = 7 * 24 * time.Hour
)

// ClaimsMessage is the JWT claims payload of an access token.
type ClaimsMessage struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// GenerateAccessToken generates a signed access token for a user.
func GenerateAccessToken(username string, userID int32, expirationTime time.Time, secret []byte) (string, error) {
	registeredClaims := jwt.RegisteredClaims{
		Issuer:   Issuer,
		Audience: jwt.ClaimStrings{AccessTokenAudience},
		IssuedAt: jwt.NewNumericDate(time.Now()),
		Subject:  strconv.Itoa(int(userID)),
		ID:       uuid.NewString(),
	}
	if !expirationTime.IsZero() {
		registeredClaims.ExpiresAt = jwt.NewNumericDate(expirationTime)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &ClaimsMessage{
		Name:             username,
		RegisteredClaims: registeredClaims,
	})
	token.Header["kid"] = KeyID

	return token.SignedString(secret)
}

// Authenticator resolves bearer tokens to users.
type Authenticator struct {
	store  *store.Store
	secret string
}

func NewAuthenticator(st *store.Store, secret string) *Authenticator {
	return &Authenticator{store: st, secret: secret}
}

// Authenticate resolves an Authorization header value to a user. An empty
// header returns (nil, nil): anonymous access is allowed, handlers decide
// what anonymous callers may do.
func (a *Authenticator) Authenticate(ctx context.Context, authHeader string) (*store.User, error) {
	if authHeader == "" {
		return nil, nil
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" || tokenString == authHeader {
		return nil, errors.New("malformed authorization header")
	}

	claims := &ClaimsMessage{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.secret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid access token")
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return nil, errors.Wrap(err, "malformed token subject")
	}

	id := int32(userID)
	user, err := a.store.GetUser(ctx, &store.FindUser{ID: &id})
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}
	if user == nil {
		return nil, errors.Errorf("user %d not found", id)
	}

	return user, nil
}
