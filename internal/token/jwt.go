package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/telcoassist-server/internal/model"
)

// Claims are the JWT claims of a channel token. The subject is the
// subscriber's canonical phone number.
type Claims struct {
	jwt.RegisteredClaims
	Channel string `json:"chn"`
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey string
	ttl       time.Duration
	now       func() time.Time
}

var _ model.TokenManager = (*JWT)(nil)

const issuer = "telcoassist"

// NewJWT creates a channel token manager with the provided secret key.
func NewJWT(secretKey string, ttl time.Duration) *JWT {
	return &JWT{secretKey: secretKey, ttl: ttl, now: time.Now}
}

// GenerateChannelToken issues a token asserting that the channel has
// authenticated phoneNumber.
func (j *JWT) GenerateChannelToken(phoneNumber string, channel model.Channel) (string, error) {
	if !channel.PreAuthenticated() {
		return "", fmt.Errorf("channel %q does not use tokens", channel)
	}

	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   phoneNumber,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
		Channel: string(channel),
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign channel token: %w", err)
	}

	return tokenString, nil
}

// ParseChannelToken validates a channel token and returns its claims.
func (j *JWT) ParseChannelToken(tokenString string) (model.ChannelClaims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(j.now))
	if err != nil {
		return model.ChannelClaims{}, fmt.Errorf("failed to parse channel token: %w", err)
	}
	if !token.Valid {
		return model.ChannelClaims{}, fmt.Errorf("channel token is invalid")
	}
	if claims.Subject == "" {
		return model.ChannelClaims{}, fmt.Errorf("channel token has no subject")
	}

	channel := model.Channel(claims.Channel)
	if !channel.PreAuthenticated() {
		return model.ChannelClaims{}, fmt.Errorf("channel mismatch: %s", claims.Channel)
	}

	out := model.ChannelClaims{PhoneNumber: claims.Subject, Channel: channel}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
