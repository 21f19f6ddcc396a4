package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, shop_id, email, hashed_password, full_name, role, pin, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ShopID, &u.Email, &u.HashedPassword, &u.FullName,
		&u.Role, &u.Pin, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const getUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1 AND is_active = TRUE
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND is_active = TRUE
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const getUserByShopAndPin = `
SELECT ` + userColumns + `
FROM users
WHERE shop_id = $1 AND pin = $2 AND is_active = TRUE
`

type GetUserByShopAndPinParams struct {
	ShopID uuid.UUID
	Pin    pgtype.Text
}

func (q *Queries) GetUserByShopAndPin(ctx context.Context, arg GetUserByShopAndPinParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByShopAndPin, arg.ShopID, arg.Pin))
}

const listUsersByShop = `
SELECT ` + userColumns + `
FROM users
WHERE shop_id = $1 AND is_active = TRUE
ORDER BY created_at
`

func (q *Queries) ListUsersByShop(ctx context.Context, shopID uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsersByShop, shopID)
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

const createUser = `
INSERT INTO users (shop_id, email, hashed_password, full_name, role, pin)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns + `
`

type CreateUserParams struct {
	ShopID         uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	Pin            pgtype.Text
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser,
		arg.ShopID, arg.Email, arg.HashedPassword, arg.FullName, arg.Role, arg.Pin))
}

const updateUser = `
UPDATE users
SET email = $3, full_name = $4, role = $5, pin = $6, updated_at = NOW()
WHERE id = $1 AND shop_id = $2 AND is_active = TRUE
RETURNING ` + userColumns + `
`

type UpdateUserParams struct {
	ID       uuid.UUID
	ShopID   uuid.UUID
	Email    string
	FullName string
	Role     string
	Pin      pgtype.Text
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, updateUser,
		arg.ID, arg.ShopID, arg.Email, arg.FullName, arg.Role, arg.Pin))
}

const softDeleteUser = `
UPDATE users
SET is_active = FALSE, updated_at = NOW()
WHERE id = $1 AND shop_id = $2 AND is_active = TRUE
RETURNING id
`

type SoftDeleteUserParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) SoftDeleteUser(ctx context.Context, arg SoftDeleteUserParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteUser, arg.ID, arg.ShopID).Scan(&id)
	return id, err
}
