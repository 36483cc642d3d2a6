package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/telcoassist-server/internal/model"
)

var (
	_ model.CustomerStore = (*CustomerStore)(nil)
	_ model.FeatureStore  = (*CustomerStore)(nil)
)

// CustomerStore is an in-memory customer system of record.
type CustomerStore struct {
	mu        sync.Mutex
	customers map[string]model.Customer
	setCalls  int
}

func NewCustomerStore(customers ...model.Customer) *CustomerStore {
	s := &CustomerStore{customers: make(map[string]model.Customer)}
	for _, c := range customers {
		s.customers[c.PhoneNumber] = c
	}
	return s
}

func (s *CustomerStore) Create(_ context.Context, c model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers[c.PhoneNumber] = c
	return nil
}

func (s *CustomerStore) GetByPhone(_ context.Context, phoneNumber string) (model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[phoneNumber]
	if !ok {
		return model.Customer{}, model.ErrNotFound
	}
	if c.PinLockedUntil != nil {
		until := *c.PinLockedUntil
		c.PinLockedUntil = &until
	}
	return c, nil
}

func (s *CustomerStore) SetLockedUntil(_ context.Context, phoneNumber string, until time.Time) error {
	return s.update(phoneNumber, func(c *model.Customer) {
		c.PinLockedUntil = &until
	})
}

func (s *CustomerStore) ClearLock(_ context.Context, phoneNumber string) error {
	return s.update(phoneNumber, func(c *model.Customer) {
		c.PinLockedUntil = nil
	})
}

func (s *CustomerStore) SetFeature(_ context.Context, phoneNumber string, active bool) error {
	return s.update(phoneNumber, func(c *model.Customer) {
		c.VoicemailActive = active
		s.setCalls++
	})
}

func (s *CustomerStore) GetFeature(_ context.Context, phoneNumber string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[phoneNumber]
	if !ok {
		return false, model.ErrNotFound
	}
	return c.VoicemailActive, nil
}

// SetFeatureCalls reports how many times the feature flag was written.
func (s *CustomerStore) SetFeatureCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCalls
}

func (s *CustomerStore) update(phoneNumber string, fn func(*model.Customer)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[phoneNumber]
	if !ok {
		return model.ErrNotFound
	}
	fn(&c)
	c.UpdatedAt = time.Now()
	s.customers[phoneNumber] = c
	return nil
}
