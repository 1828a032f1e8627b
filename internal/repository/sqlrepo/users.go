package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/VYBRANDMEDIA/nannygo/pkg/models"
)

func (r *Repo) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	if u == nil {
		return 0, fmt.Errorf("user is nil")
	}
	return r.insert(ctx, r.conn.GetConn(), `INSERT INTO users (email, password_hash, created) VALUES (?, ?, ?)`,
		strings.ToLower(u.Email), u.PasswordHash, now())
}

func (r *Repo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, `SELECT id, email, password_hash, created FROM users WHERE id = ?`, id)
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `SELECT id, email, password_hash, created FROM users WHERE email = ?`, strings.ToLower(email))
}

func (r *Repo) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	var created int64
	if err := r.conn.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.Created = fromMillis(created)
	return &u, nil
}
