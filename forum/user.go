// forum/user.go
package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = bcrypt.DefaultCost

// Same text for unknown user and wrong password.
const invalidCredentials = "Invalid credentials"

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func passwordMatches(hash, input string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(input))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}
	return true, nil
}

// Register creates a non-admin user.
func (d *Database) Register(ctx context.Context, username, email, password string) (Identity, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return Identity{}, newError(ErrValidation, "All fields required")
	}
	if len(password) > 72 {
		return Identity{}, newError(ErrValidation, "Password must be at most 72 bytes")
	}
	hash, err := hashPassword(password, d.bcryptCost)
	if err != nil {
		return Identity{}, err
	}
	id, err := d.insert(ctx,
		`INSERT INTO users (username, email, password, is_admin, created_at) VALUES (?, ?, ?, ?, ?)`,
		username, email, hash, false, now())
	if err != nil {
		if isUniqueViolation(err) {
			return Identity{}, newError(ErrConflict, "Username or email already exists")
		}
		return Identity{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return Identity{UserID: id, Username: username}, nil
}

// Authenticate verifies a username and password pair.
func (d *Database) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	var (
		ident Identity
		hash  string
	)
	err := d.db.QueryRowContext(ctx,
		d.rebind(`SELECT id, username, password, is_admin FROM users WHERE username = ?`), username).
		Scan(&ident.UserID, &ident.Username, &hash, &ident.IsAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, newError(ErrAuth, invalidCredentials)
		}
		return Identity{}, fmt.Errorf("failed to look up user: %w", err)
	}
	ok, err := passwordMatches(hash, password)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return Identity{}, newError(ErrAuth, invalidCredentials)
	}
	return ident, nil
}

// UserByUsername returns the user's identity; ok is false if no such user.
func (d *Database) UserByUsername(ctx context.Context, username string) (ident Identity, ok bool, err error) {
	err = d.db.QueryRowContext(ctx,
		d.rebind(`SELECT id, username, is_admin FROM users WHERE username = ?`), username).
		Scan(&ident.UserID, &ident.Username, &ident.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, false, nil
	}
	if err != nil {
		return Identity{}, false, fmt.Errorf("failed to look up user: %w", err)
	}
	return ident, true, nil
}

func (d *Database) SetAdmin(ctx context.Context, userID int64, admin bool) error {
	res, err := d.db.ExecContext(ctx, d.rebind(`UPDATE users SET is_admin = ? WHERE id = ?`), admin, userID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return affected(res, "User")
}

func (d *Database) ToggleAdmin(ctx context.Context, userID int64) error {
	res, err := d.db.ExecContext(ctx, d.rebind(`UPDATE users SET is_admin = NOT is_admin WHERE id = ?`), userID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return affected(res, "User")
}

// ListUsers is the directory visible to every logged-in user.
func (d *Database) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, username, email, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListUsersForAdmin includes the admin flag, newest accounts first.
func (d *Database) ListUsersForAdmin(ctx context.Context) ([]AdminUser, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, username, email, is_admin, created_at FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []AdminUser{}
	for rows.Next() {
		var u AdminUser
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
