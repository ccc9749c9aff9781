package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// User is one row of the users table.
type User struct {
	ID   uuid.UUID `json:"id" yaml:"id"`
	Name string    `json:"name" yaml:"name"`
}

// FixtureUsers returns the five demo users with their fixed ids.
func FixtureUsers() []User {
	return []User{
		{ID: uuid.MustParse("e6af74a8-4711-4609-a94f-2cbfab9695e5"), Name: "user1"},
		{ID: uuid.MustParse("281336f4-2a52-4535-847c-11a4d3682ec1"), Name: "user2"},
		{ID: uuid.MustParse("c32b8d37-89bd-4dfe-a7d5-5f0258692d05"), Name: "user3"},
		{ID: uuid.MustParse("973fe99f-5715-4dfd-a28d-5b3751b26ab5"), Name: "user4"},
		{ID: uuid.MustParse("0aabb840-bab6-474b-9f08-c18527a2b47f"), Name: "user5"},
	}
}

// SeedUsers upserts users in a single transaction.
// Re-seeding the same ids updates their names.
func (s *Store) SeedUsers(ctx context.Context, users []User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO users (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, u := range users {
		if _, err := stmt.ExecContext(ctx, u.ID.String(), u.Name); err != nil {
			return fmt.Errorf("upsert user %s: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListUsers returns every user ordered by name, then id.
//
// Returns an empty slice (not nil) if the table is empty.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM users ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("user id %q: %w", id, err)
		}
		users = append(users, User{ID: parsed, Name: name})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
