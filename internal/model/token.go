package model

import "time"

// ChannelClaims are the verified facts carried by a channel token.
type ChannelClaims struct {
	PhoneNumber string
	Channel     Channel
	ExpiresAt   time.Time
}

// TokenManager issues and validates tokens of pre-authenticated channels.
type TokenManager interface {
	GenerateChannelToken(phoneNumber string, channel Channel) (string, error)
	ParseChannelToken(token string) (ChannelClaims, error)
}
