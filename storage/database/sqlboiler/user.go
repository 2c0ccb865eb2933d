package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
)

const userColumns = `id, name, username, email, role, is_active, password_hash, created_at, updated_at, last_login`

var userOrderings = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"role":       "role",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           string      `boil:"id"`
	Name         string      `boil:"name"`
	Username     null.String `boil:"username"`
	Email        null.String `boil:"email"`
	Role         string      `boil:"role"`
	IsActive     bool        `boil:"is_active"`
	PasswordHash null.Bytes  `boil:"password_hash"`
	CreatedAt    time.Time   `boil:"created_at"`
	UpdatedAt    time.Time   `boil:"updated_at"`
	LastLogin    null.Time   `boil:"last_login"`
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	return getExec(repo.exec, svcExec)
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         usr.Role,
		IsActive:     usr.Active(),
		PasswordHash: null.NewBytes(usr.PasswordHash, len(usr.PasswordHash) > 0),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unboil(row userRow) user.User {
	active := row.IsActive
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Role:         row.Role,
		IsActive:     &active,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	var c clauses
	c.add("(username = " + c.arg(null.NewString(username, username != "")) +
		" OR email = " + c.arg(null.NewString(email, email != "")) + ")")
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		c.add("NOT (id::text = ANY(" + c.arg(pq.Array(ids)) + "))")
	}

	var rows []userRow
	q := `SELECT ` + userColumns + ` FROM "user"` + c.where()
	if err := queries.Raw(q, c.args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.boil(usr)
	q := `INSERT INTO "user" (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := queries.Raw(q,
		row.ID, row.Name, row.Username, row.Email, row.Role, row.IsActive,
		row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin,
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var c clauses
	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := c.arg("%" + filter.Search + "%")
			c.add("(name ILIKE " + val + " OR username ILIKE " + val + " OR email ILIKE " + val + ")")
		}
		if len(filter.Roles) > 0 {
			c.add("role = ANY(" + c.arg(pq.Array(filter.Roles)) + ")")
		}
		if filter.IsActive != nil {
			c.add("is_active = " + c.arg(*filter.IsActive))
		}
		if len(filter.IDs) > 0 {
			c.add("id::text = ANY(" + c.arg(pq.Array(filter.IDs)) + ")")
		}
	}

	q := `SELECT ` + userColumns + ` FROM "user"` + c.where() +
		` ORDER BY ` + core.OrderByClause(ordering, userOrderings, "name ASC") + `, id ASC`

	var rows []userRow
	if err := queries.Raw(q, c.args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.unboil(row))
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var c clauses
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		c.add("id = " + c.arg(filter.ID))
	case filter.Username != "":
		c.add("username = " + c.arg(filter.Username))
	case filter.Email != "":
		c.add("email = " + c.arg(filter.Email))
	case filter.UsernameOrEmail != "":
		val := c.arg(filter.UsernameOrEmail)
		c.add("(username = " + val + " OR email = " + val + ")")
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := `SELECT ` + userColumns + ` FROM "user"` + c.where() + ` LIMIT 1`
	if err := queries.Raw(q, c.args...).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return repo.unboil(row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := repo.boil(usr)
	q := `UPDATE "user" SET name = $2, username = $3, email = $4, role = $5, is_active = $6,
		password_hash = $7, updated_at = $8, last_login = $9 WHERE id = $1`
	res, err := queries.Raw(q,
		row.ID, row.Name, row.Username, row.Email, row.Role, row.IsActive,
		row.PasswordHash, row.UpdatedAt, row.LastLogin,
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.unboil(row), nil
}

func (repo userRepository) ListUserIDs(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	var rows []struct {
		ID string `boil:"id"`
	}
	if err := queries.Raw(`SELECT id FROM "user" ORDER BY id`).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "listing user ids")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}
