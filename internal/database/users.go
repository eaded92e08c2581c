package database

import (
	"context"

	"github.com/google/uuid"
)

const userColumns = `id, establishment_id, email, hashed_password, full_name, role, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.EstablishmentID, &u.Email, &u.HashedPassword,
		&u.FullName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND is_active = TRUE`, email)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active = TRUE`, id)
	return scanUser(row)
}

func (q *Queries) ListUsersByEstablishment(ctx context.Context, establishmentID uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE establishment_id = $1 AND is_active = TRUE
		 ORDER BY created_at`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type CreateUserParams struct {
	EstablishmentID uuid.UUID
	Email           string
	HashedPassword  string
	FullName        string
	Role            string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO users (establishment_id, email, hashed_password, full_name, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		arg.EstablishmentID, arg.Email, arg.HashedPassword, arg.FullName, arg.Role)
	return scanUser(row)
}

type UpdateUserParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Email           string
	FullName        string
	Role            string
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE users
		 SET email = $3, full_name = $4, role = $5, updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2 AND is_active = TRUE
		 RETURNING `+userColumns,
		arg.ID, arg.EstablishmentID, arg.Email, arg.FullName, arg.Role)
	return scanUser(row)
}

type UpdateUserProfileParams struct {
	ID       uuid.UUID
	FullName string
}

func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) (User, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE users SET full_name = $2, updated_at = NOW()
		 WHERE id = $1 AND is_active = TRUE
		 RETURNING `+userColumns,
		arg.ID, arg.FullName)
	return scanUser(row)
}

type UpdateUserPasswordParams struct {
	ID             uuid.UUID
	HashedPassword string
}

func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.Exec(ctx,
		`UPDATE users SET hashed_password = $2, updated_at = NOW()
		 WHERE id = $1 AND is_active = TRUE`,
		arg.ID, arg.HashedPassword)
	return err
}

type SoftDeleteUserParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
}

func (q *Queries) SoftDeleteUser(ctx context.Context, arg SoftDeleteUserParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2 AND is_active = TRUE
		 RETURNING id`,
		arg.ID, arg.EstablishmentID).Scan(&id)
	return id, err
}

func (q *Queries) CreateEstablishment(ctx context.Context, name string) (Establishment, error) {
	var e Establishment
	err := q.db.QueryRow(ctx,
		`INSERT INTO establishments (name) VALUES ($1)
		 RETURNING id, name, created_at`, name).
		Scan(&e.ID, &e.Name, &e.CreatedAt)
	return e, err
}

func (q *Queries) GetEstablishment(ctx context.Context, id uuid.UUID) (Establishment, error) {
	var e Establishment
	err := q.db.QueryRow(ctx,
		`SELECT id, name, created_at FROM establishments WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &e.CreatedAt)
	return e, err
}
