package model

import (
	"context"
	"time"
)

// Customer is a subscriber record keyed by canonical phone number.
type Customer struct {
	PhoneNumber     string
	CustomerID      string
	Name            string
	PinHash         string
	Salt            string
	PinIterations   int
	PinLockedUntil  *time.Time
	VoicemailActive bool
	UpdatedAt       time.Time
}

// CustomerStore reads customers and mutates their lockout state.
type CustomerStore interface {
	GetByPhone(ctx context.Context, phoneNumber string) (Customer, error)
	SetLockedUntil(ctx context.Context, phoneNumber string, until time.Time) error
	ClearLock(ctx context.Context, phoneNumber string) error
}

// FeatureStore is the system of record for subscriber features.
type FeatureStore interface {
	SetFeature(ctx context.Context, phoneNumber string, active bool) error
	GetFeature(ctx context.Context, phoneNumber string) (bool, error)
}
