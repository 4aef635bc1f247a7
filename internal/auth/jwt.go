package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries an Identity inside a signed token. The audience is the
// key set (api id) the token was issued for and the subject is the key id.
type Claims struct {
	OwnerID     string      `json:"owner_id"`
	Environment Environment `json:"environment"`
	Type        KeyType     `json:"type"`
	AppID       string      `json:"app_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens as API keys. It lets the gateway run
// without the external key service, for local setups and tests.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) Verify(_ context.Context, apiID, key string) (Identity, error) {
	if key == "" {
		return Identity{}, ErrInvalidKey
	}

	var claims Claims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(apiID),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	_, err := jwt.ParseWithClaims(key, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidKey, errors.New("missing subject"))
	}

	return Identity{
		KeyID:       claims.Subject,
		OwnerID:     claims.OwnerID,
		Environment: claims.Environment,
		Type:        claims.Type,
		AppID:       claims.AppID,
	}, nil
}

// Issue signs a key for id, valid for ttl against apiID.
func (v *JWTVerifier) Issue(apiID string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		OwnerID:     id.OwnerID,
		Environment: id.Environment,
		Type:        id.Type,
		AppID:       id.AppID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.KeyID,
			Issuer:    v.issuer,
			Audience:  jwt.ClaimStrings{apiID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing key: %w", err)
	}

	return signed, nil
}
