package utils // package utils provides token helpers and the retry loop shared by services

import (
    "errors"  // sentinel errors for malformed claims
    "strconv" // subject claim is the decimal user id
    "time"    // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// ErrInvalidToken is returned when a token fails signature, expiry or
// claim validation.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  Tokens are sent in the Authorization header
// when calling protected endpoints.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// Identity is the caller information carried by an access token.
type Identity struct {
    UserID uint64 // sub claim
    Email  string // email claim; may be empty
    Role   string // role claim
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The token
// carries the user ID as subject (sub) plus the role and email claims,
// together with the standard expiration (exp) and issued at (iat) claims.
// Accounts are managed elsewhere; this is used by cmd/tokengen and tests.
func NewAccessToken(secret string, userID uint64, email, role string, ttl time.Duration) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":   strconv.FormatUint(userID, 10),
        "role":  role,
        "email": email,
        "exp":   exp.Unix(),
        "iat":   now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw with secret and returns its identity.
// Only HMAC signing methods are accepted.  The subject may be encoded as a
// decimal string or as a JSON number.
func ParseAccessToken(secret, raw string) (Identity, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        // Type assert the signing method to HMAC; reject others.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return Identity{}, ErrInvalidToken
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Identity{}, ErrInvalidToken
    }
    var id Identity
    switch sub := claims["sub"].(type) {
    case string:
        n, err := strconv.ParseUint(sub, 10, 64)
        if err != nil {
            return Identity{}, ErrInvalidToken
        }
        id.UserID = n
    case float64:
        if sub < 0 {
            return Identity{}, ErrInvalidToken
        }
        id.UserID = uint64(sub)
    default:
        return Identity{}, ErrInvalidToken
    }
    id.Role, _ = claims["role"].(string)
    id.Email, _ = claims["email"].(string)
    return id, nil
}
