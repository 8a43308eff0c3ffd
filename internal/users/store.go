package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/searchdeck/searchdeck/internal/database"
)

// ErrNotFound is returned when no user matches the lookup key.
var ErrNotFound = errors.New("user not found")

// Store defines the credential-store operations the auth flow needs.
type Store interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// SQLStore implements Store on top of database/sql for both supported
// dialects.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore creates a store bound to the given database handle.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db.DB, dialect: db.Dialect}
}

// rebind rewrites `?` placeholders to `$n` for postgres. Queries are
// written once in the sqlite form.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Create inserts a new user and fills in its assigned id.
func (s *SQLStore) Create(ctx context.Context, user *User) error {
	if s.dialect == "postgres" {
		query := s.rebind(`
			INSERT INTO users (username, email, password_hash)
			VALUES (?, ?, ?)
			RETURNING id, created_at
		`)
		err := s.db.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash).
			Scan(&user.ID, &user.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

// GetByEmail retrieves a user by email, the natural login key.
func (s *SQLStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := s.rebind(`
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE email = ?
	`)
	return s.scanOne(s.db.QueryRowContext(ctx, query, email))
}

// GetByID retrieves a user by id, the key carried inside tokens.
func (s *SQLStore) GetByID(ctx context.Context, id int64) (*User, error) {
	query := s.rebind(`
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id = ?
	`)
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// ExistsByEmail reports whether a user row with the email exists.
func (s *SQLStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := s.rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`)
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// Delete removes a user row.
func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	query := s.rebind(`DELETE FROM users WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) scanOne(row *sql.Row) (*User, error) {
	user := &User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}
