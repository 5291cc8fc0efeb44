package utils // package utils provides helpers for admin tokens and password hashing

import (
    "errors"
    "strings"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role the service issues tokens for.
const RoleAdmin = "ADMIN"

// ErrInvalidToken is returned by ParseAdminToken for any token that cannot
// be trusted: bad signature, wrong algorithm, expired or missing claims.
var ErrInvalidToken = errors.New("invalid token")

// AdminToken is a signed HS256 JWT and its expiry.
type AdminToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// AdminClaims are the claims carried by admin tokens.  Subject holds the
// admin email.
type AdminClaims struct {
    Role string `json:"role"`
    jwt.RegisteredClaims
}

// NewAdminToken builds and signs a token for the admin identified by email,
// valid for ttlMin minutes.
func NewAdminToken(secret, email string, ttlMin int) (AdminToken, error) {
    if secret == "" {
        return AdminToken{}, errors.New("jwt secret is empty")
    }
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := AdminClaims{
        Role: RoleAdmin,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   strings.ToLower(strings.TrimSpace(email)),
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AdminToken{}, err
    }
    return AdminToken{Token: signed, Exp: exp}, nil
}

// ParseAdminToken verifies raw with secret and returns its claims.  Only
// HMAC signatures are accepted.
func ParseAdminToken(secret, raw string) (*AdminClaims, error) {
    claims := &AdminClaims{}
    tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil || !tok.Valid || claims.Subject == "" {
        return nil, ErrInvalidToken
    }
    return claims, nil
}
