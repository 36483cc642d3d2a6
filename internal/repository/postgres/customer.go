package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/telcoassist-server/internal/model"
)

var (
	_ model.CustomerStore = (*CustomerRepository)(nil)
	_ model.FeatureStore  = (*CustomerRepository)(nil)
)

// CustomerRepository is the customer system of record. It holds lockout
// state for the guard and the feature flag toggled by actions.
type CustomerRepository struct {
	db *Connection
}

func NewCustomerRepository(db *Connection) *CustomerRepository {
	return &CustomerRepository{
		db: db,
	}
}

// Create inserts or replaces a customer.
func (r *CustomerRepository) Create(ctx context.Context, c model.Customer) error {
	query := `
		INSERT INTO customers (phone_number, customer_id, name, security_pin_hash, salt, pin_iterations,
			pin_locked_until, voicemail_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (phone_number) DO UPDATE SET
			customer_id = EXCLUDED.customer_id, name = EXCLUDED.name,
			security_pin_hash = EXCLUDED.security_pin_hash, salt = EXCLUDED.salt,
			pin_iterations = EXCLUDED.pin_iterations, pin_locked_until = EXCLUDED.pin_locked_until,
			voicemail_active = EXCLUDED.voicemail_active, updated_at = NOW()`

	_, err := r.db.Exec(ctx, query,
		c.PhoneNumber, c.CustomerID, c.Name, c.PinHash, c.Salt, c.PinIterations, c.PinLockedUntil, c.VoicemailActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

func (r *CustomerRepository) GetByPhone(ctx context.Context, phoneNumber string) (model.Customer, error) {
	query := `
		SELECT phone_number, customer_id, name, security_pin_hash, salt, pin_iterations,
			pin_locked_until, voicemail_active, updated_at
		FROM customers WHERE phone_number = $1`

	var c model.Customer
	err := r.db.QueryRow(ctx, query, phoneNumber).Scan(
		&c.PhoneNumber, &c.CustomerID, &c.Name, &c.PinHash, &c.Salt, &c.PinIterations,
		&c.PinLockedUntil, &c.VoicemailActive, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Customer{}, model.ErrNotFound
		}
		return model.Customer{}, fmt.Errorf("failed to get customer by phone: %w", err)
	}

	return c, nil
}

func (r *CustomerRepository) SetLockedUntil(ctx context.Context, phoneNumber string, until time.Time) error {
	const query = `UPDATE customers SET pin_locked_until = $2, updated_at = NOW() WHERE phone_number = $1`
	return r.exec(ctx, query, "set lockout", phoneNumber, until)
}

func (r *CustomerRepository) ClearLock(ctx context.Context, phoneNumber string) error {
	const query = `UPDATE customers SET pin_locked_until = NULL, updated_at = NOW() WHERE phone_number = $1`
	return r.exec(ctx, query, "clear lockout", phoneNumber)
}

func (r *CustomerRepository) SetFeature(ctx context.Context, phoneNumber string, active bool) error {
	const query = `UPDATE customers SET voicemail_active = $2, updated_at = NOW() WHERE phone_number = $1`
	return r.exec(ctx, query, "set feature", phoneNumber, active)
}

func (r *CustomerRepository) GetFeature(ctx context.Context, phoneNumber string) (bool, error) {
	const query = `SELECT voicemail_active FROM customers WHERE phone_number = $1`

	var active bool
	err := r.db.QueryRow(ctx, query, phoneNumber).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, model.ErrNotFound
		}
		return false, fmt.Errorf("failed to get feature: %w", err)
	}

	return active, nil
}

func (r *CustomerRepository) exec(ctx context.Context, query, op string, args ...any) error {
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
