package repos

import (
	"database/sql"
	"errors"

	"openmarket/internal/domain"

	"github.com/jmoiron/sqlx"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

const userSelect = `
  SELECT username, password_hash, name, phone_number, user_type,
         COALESCE(company_registration_number,'') AS company_registration_number,
         COALESCE(store_name,'') AS store_name
  FROM users`

func (r *UserRepo) ByUsername(username string) (*domain.User, error) {
	var u domain.User
	err := r.DB.Get(&u, userSelect+` WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UsernameExists(username string) (bool, error) {
	var n int
	err := r.DB.Get(&n, `SELECT COUNT(*) FROM users WHERE username = ?`, username)
	return n > 0, err
}

func (r *UserRepo) RegistrationNumberExists(num string) (bool, error) {
	var n int
	err := r.DB.Get(&n, `SELECT COUNT(*) FROM users WHERE company_registration_number = ?`, num)
	return n > 0, err
}

func (r *UserRepo) Create(u domain.User) error {
	_, err := r.DB.Exec(`
		INSERT INTO users(username,password_hash,name,phone_number,user_type,company_registration_number,store_name)
		VALUES(?,?,?,?,?,NULLIF(?,''),NULLIF(?,''))
	`, u.Username, u.Hash, u.Name, u.PhoneNumber, u.UserType, u.RegistrationNumber, u.StoreName)
	return err
}
