package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rfontaine/atelier/internal/domain"
)

// Compile-time check to ensure Store implements domain.IdentityStore.
var _ domain.IdentityStore = (*Store)(nil)

// GetCustomer loads a customer account by id.
func (s *Store) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var c domain.Customer
	var firstName, lastName, providerID pgtype.Text

	err := s.pool.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, provider_customer_id, created_at
		FROM users
		WHERE id = $1`, id).
		Scan(&c.ID, &c.Email, &firstName, &lastName, &providerID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	c.FirstName = textValue(firstName)
	c.LastName = textValue(lastName)
	c.ProviderCustomerID = textValue(providerID)
	return &c, nil
}

// ListCustomerAddresses returns a customer's saved addresses, default first.
func (s *Store) ListCustomerAddresses(ctx context.Context, userID uuid.UUID) ([]domain.CustomerAddress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, line1, line2, city, state, postal_code, country, is_default, created_at
		FROM user_addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []domain.CustomerAddress
	for rows.Next() {
		var a domain.CustomerAddress
		var name, line2, state pgtype.Text
		err := rows.Scan(&a.ID, &a.UserID, &name, &a.Address.Line1, &line2,
			&a.Address.City, &state, &a.Address.PostalCode, &a.Address.Country,
			&a.IsDefault, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		a.Address.Name = textValue(name)
		a.Address.Line2 = textValue(line2)
		a.Address.State = textValue(state)
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

// SetProviderCustomerID records the billing provider's customer id for a
// user. First write wins so concurrent checkouts do not flap the link.
func (s *Store) SetProviderCustomerID(ctx context.Context, userID uuid.UUID, providerCustomerID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET provider_customer_id = $2
		WHERE id = $1 AND provider_customer_id IS NULL`, userID, textOrNull(providerCustomerID))
	if err != nil {
		return fmt.Errorf("failed to set provider customer id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the user is gone or another checkout already linked one.
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user: %w", err)
		}
		if !exists {
			return domain.ErrCustomerNotFound
		}
	}
	return nil
}
