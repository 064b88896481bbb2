package repository

import (
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

const userColumns = `id, username, password_hash, full_name, email, role, is_active, created_at, version`

func (r *Repository) getUser(where string, arg any) (*domain.User, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` = $1`

	user := &domain.User{}
	err := r.dbpool.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.FullName,
		&user.Email,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.Version,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) GetUserByID(id int64) (*domain.User, error) {
	return r.getUser("id", id)
}

func (r *Repository) GetUserByUsername(username string) (*domain.User, error) {
	return r.getUser("username", username)
}

// CreateUser 插入用户，用户名已存在时不做任何修改并返回 sql.ErrNoRows
func (r *Repository) CreateUser(user *domain.User) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	row := r.dbpool.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, full_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO NOTHING
		RETURNING id, is_active, created_at, version
	`, user.Username, user.PasswordHash, user.FullName, user.Email, user.Role)

	return row.Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.Version)
}
