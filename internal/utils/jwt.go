package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeAccess is the value of the "type" claim on access tokens.
const TokenTypeAccess = "access"

// ErrInvalidAccessToken is returned by Verify for any token that fails
// parsing, signature, issuer, audience, expiry or type checks.
var ErrInvalidAccessToken = errors.New("invalid access token")

// AccessClaims is the claim layout of a signed access token.  Standard
// claims carry issuer, audience, subject (the account id), expiry, issued-at
// and a unique jti.  Roles feed the admin guard.
type AccessClaims struct {
	Type  string   `json:"type"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// IssuedTokens is what a successful login or refresh hands back to the
// caller.  RefreshSecret is opaque and must only be persisted as a digest.
type IssuedTokens struct {
	AccessToken      string
	RefreshSecret    string
	ExpiresInSeconds int64
}

// JWTIssuer signs access tokens with RS256 and verifies them against the
// matching public key.
type JWTIssuer struct {
	key      *rsa.PrivateKey
	keyID    string
	issuer   string
	audience string
	now      func() time.Time
}

// NewJWTIssuer builds an issuer.  All arguments are required.
func NewJWTIssuer(key *rsa.PrivateKey, keyID, issuer, audience string) (*JWTIssuer, error) {
	if key == nil {
		return nil, errors.New("jwt: signing key is required")
	}
	if keyID == "" || issuer == "" || audience == "" {
		return nil, errors.New("jwt: key id, issuer and audience are required")
	}
	return &JWTIssuer{
		key:      key,
		keyID:    keyID,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}, nil
}

// WithClock replaces the issuer's time source.  Tests use it to pin iat/exp.
func (j *JWTIssuer) WithClock(now func() time.Time) *JWTIssuer {
	j.now = now
	return j
}

// Issue signs a new access token for accountID and generates a fresh opaque
// refresh secret.  The refresh secret is never a JWT: it is looked up by
// digest, so it carries no claims and refreshTTL is only validated here.
// The caller records the refresh expiry next to the digest.
func (j *JWTIssuer) Issue(accountID string, roles []string, accessTTL, refreshTTL time.Duration) (IssuedTokens, error) {
	if accountID == "" {
		return IssuedTokens{}, errors.New("jwt: account id is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return IssuedTokens{}, errors.New("jwt: token ttl must be positive")
	}
	now := j.now().UTC()

	claims := AccessClaims{
		Type:  TokenTypeAccess,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   accountID,
			Audience:  jwt.ClaimStrings{j.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTTL)),
			ID:        uuid.NewString(),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = j.keyID
	signed, err := t.SignedString(j.key)
	if err != nil {
		return IssuedTokens{}, fmt.Errorf("sign access token: %w", err)
	}

	secret, err := NewRefreshSecret()
	if err != nil {
		return IssuedTokens{}, fmt.Errorf("generate refresh secret: %w", err)
	}

	return IssuedTokens{
		AccessToken:      signed,
		RefreshSecret:    secret,
		ExpiresInSeconds: int64(accessTTL / time.Second),
	}, nil
}

// Verify parses and validates a bearer access token.  Only RS256 is
// accepted, and issuer and audience must match this issuer's.
func (j *JWTIssuer) Verify(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return &j.key.PublicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(j.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	if claims.Type != TokenTypeAccess || claims.Subject == "" {
		return nil, fmt.Errorf("%w: wrong token type", ErrInvalidAccessToken)
	}
	return claims, nil
}

// ParseRSAPrivateKey decodes a PEM encoded PKCS#1 or PKCS#8 RSA key.
func ParseRSAPrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemData)
	if err != nil {
		return nil, fmt.Errorf("parse rsa private key: %w", err)
	}
	return key, nil
}

// GenerateRSAKey creates a throwaway 2048-bit signing key.  Tokens signed
// with it do not survive a restart.
func GenerateRSAKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
}
