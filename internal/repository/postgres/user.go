package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msomdec/portfolio-users/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements domain.UserStore using PostgreSQL.
type UserRepository struct {
	q    querier
	pool *pgxpool.Pool // nil when bound to a transaction
	now  func() time.Time
}

var _ domain.UserStore = (*UserRepository)(nil)

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{q: db.Pool, pool: db.Pool, now: func() time.Time { return db.now() }}
}

const userColumns = `id, email, first_name, last_name, is_active, created_at, updated_at`

var sortColumns = map[string]string{
	domain.SortByID:        "id",
	domain.SortByEmail:     "email",
	domain.SortByFirstName: "first_name",
	domain.SortByLastName:  "last_name",
	domain.SortByIsActive:  "is_active",
	domain.SortByCreatedAt: "created_at",
	domain.SortByUpdatedAt: "updated_at",
}

// WithinTx runs fn inside a transaction. A repository that is already bound
// to a transaction runs fn in that same transaction.
func (r *UserRepository) WithinTx(ctx context.Context, fn func(users domain.UserRepository) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	// Rollback is a no-op once Commit succeeded.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&UserRepository{q: tx, now: r.now}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := scanUser(r.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("query user by id", err)
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(r.q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("query user by email", err)
	}
	return user, nil
}

func (r *UserRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, storageErr("check user id", err)
	}
	return exists, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return false, storageErr("check user email", err)
	}
	return exists, nil
}

func (r *UserRepository) FindAll(ctx context.Context, req domain.PageRequest) (domain.Page[domain.User], error) {
	return r.findPage(ctx, req, "", "list users")
}

func (r *UserRepository) FindActive(ctx context.Context, req domain.PageRequest) (domain.Page[domain.User], error) {
	return r.findPage(ctx, req, "WHERE is_active", "list active users")
}

func (r *UserRepository) findPage(ctx context.Context, req domain.PageRequest, where, op string) (domain.Page[domain.User], error) {
	orderBy, err := orderClause(req.Sort)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}

	var total int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users `+where).Scan(&total); err != nil {
		return domain.Page[domain.User]{}, storageErr(op, err)
	}

	rows, err := r.q.Query(ctx,
		`SELECT `+userColumns+` FROM users `+where+` `+orderBy+` LIMIT $1 OFFSET $2`,
		req.Size, req.Offset())
	if err != nil {
		return domain.Page[domain.User]{}, storageErr(op, err)
	}

	users, err := collectUsers(rows)
	if err != nil {
		return domain.Page[domain.User]{}, storageErr(op, err)
	}
	return domain.NewPage(users, req, total), nil
}

func (r *UserRepository) SearchByFullName(ctx context.Context, fragment string) ([]domain.User, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE LOWER(first_name || ' ' || last_name) LIKE '%' || LOWER($1) || '%' ESCAPE '\'
		 ORDER BY id`, escapeLike(fragment))
	if err != nil {
		return nil, storageErr("search users by name", err)
	}

	users, err := collectUsers(rows)
	if err != nil {
		return nil, storageErr("search users by name", err)
	}
	return users, nil
}

func (r *UserRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_active`).Scan(&count); err != nil {
		return 0, storageErr("count active users", err)
	}
	return count, nil
}

func (r *UserRepository) FindCreatedBetween(ctx context.Context, start, end time.Time) ([]domain.User, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE created_at BETWEEN $1 AND $2
		 ORDER BY created_at, id`, start, end)
	if err != nil {
		return nil, storageErr("list users created between", err)
	}

	users, err := collectUsers(rows)
	if err != nil {
		return nil, storageErr("list users created between", err)
	}
	return users, nil
}

func (r *UserRepository) FindWithPortfolios(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+userColumns+` FROM users u
		 WHERE EXISTS (SELECT 1 FROM portfolios p WHERE p.user_id = u.id)
		 ORDER BY u.id`)
	if err != nil {
		return nil, storageErr("list users with portfolios", err)
	}

	users, err := collectUsers(rows)
	if err != nil {
		return nil, storageErr("list users with portfolios", err)
	}
	return users, nil
}

func (r *UserRepository) Save(ctx context.Context, user *domain.User) error {
	if user.ID == 0 {
		return r.insert(ctx, user)
	}
	return r.update(ctx, user)
}

func (r *UserRepository) insert(ctx context.Context, user *domain.User) error {
	now := r.now()
	var id int64
	err := r.q.QueryRow(ctx,
		`INSERT INTO users (email, first_name, last_name, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 RETURNING id`,
		user.Email, user.FirstName, user.LastName, user.IsActive, now,
	).Scan(&id)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return domain.ErrDuplicateEmail
		}
		return storageErr("insert user", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) update(ctx context.Context, user *domain.User) error {
	now := r.now()
	if now.Before(user.UpdatedAt) {
		now = user.UpdatedAt
	}

	tag, err := r.q.Exec(ctx,
		`UPDATE users SET email = $2, first_name = $3, last_name = $4, is_active = $5, updated_at = $6
		 WHERE id = $1`,
		user.ID, user.Email, user.FirstName, user.LastName, user.IsActive, now,
	)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return domain.ErrDuplicateEmail
		}
		return storageErr("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return domain.ErrUserHasPortfolios
		}
		return storageErr("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func orderClause(s domain.Sort) (string, error) {
	col, ok := sortColumns[s.Field]
	if !ok {
		return "", fmt.Errorf("%w: cannot sort users by %q", domain.ErrInvalidInput, s.Field)
	}
	dir := "ASC"
	if s.Direction == domain.Desc {
		dir = "DESC"
	}
	if col == "id" {
		return "ORDER BY id " + dir, nil
	}
	return "ORDER BY " + col + " " + dir + ", id ASC", nil
}

// escapeLike makes LIKE wildcards in s match literally (escape char '\').
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.User, error) {
		u, err := scanUser(row)
		if err != nil {
			return domain.User{}, err
		}
		return *u, nil
	})
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}
