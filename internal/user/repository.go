package user

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNotFound = errors.New("user not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertVerification creates the user row on first contact and stores the
// hashed verification code with its expiry. Returns the user id.
func (r *Repository) UpsertVerification(ctx context.Context, email, codeHash string, expires time.Time) (int, error) {
	var id int
	query := `
		INSERT INTO users (email, verification_code, code_expires)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
			SET verification_code = EXCLUDED.verification_code,
			    code_expires = EXCLUDED.code_expires
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, email, codeHash, expires).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	var codeHash sql.NullString
	var codeExpires sql.NullTime

	query := `
		SELECT id, email, email_verified, verification_code, code_expires, created_at
		FROM users WHERE email = $1
	`
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&u.ID, &u.Email, &u.EmailVerified, &codeHash, &codeExpires, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	u.CodeHash = codeHash.String
	u.CodeExpires = codeExpires.Time
	return u, nil
}

// MarkVerified flips the verified flag and clears the stored code so it
// cannot be replayed.
func (r *Repository) MarkVerified(ctx context.Context, id int) error {
	query := `
		UPDATE users
		SET email_verified = TRUE, verification_code = NULL, code_expires = NULL
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
