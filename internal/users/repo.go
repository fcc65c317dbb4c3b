package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("user not found")

// Roles recognised by access control, from most to least privileged.
const (
	RoleAdministrator = "administrator"
	RoleEditor        = "editor"
	RoleAuthor        = "author"
	RoleContributor   = "contributor"
	RoleSubscriber    = "subscriber"
)

// ManagerRoles are the roles whose users can be picked as project managers.
var ManagerRoles = []string{RoleAdministrator, RoleEditor}

type User struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) RoleOf(ctx context.Context, userID int64) (string, error) {
	const q = `select role from users where id = $1;`

	var role string
	if err := r.db.QueryRow(ctx, q, userID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("lookup role: %w", err)
	}
	return role, nil
}

func (r *Repo) ListByRoles(ctx context.Context, roles []string) ([]User, error) {
	const q = `
select id, login, display_name, role
from users
where role = any($1)
order by display_name, id;
`
	rows, err := r.db.Query(ctx, q, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0, 8)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Login, &u.DisplayName, &u.Role); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
