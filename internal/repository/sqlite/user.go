package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/portfolio-users/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserRepository implements domain.UserStore using SQLite.
type UserRepository struct {
	q   querier
	db  *sql.DB // nil when bound to a transaction
	now func() time.Time
}

var _ domain.UserStore = (*UserRepository)(nil)

// NewUserRepository creates a new SQLite-backed UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{q: db.SqlDB, db: db.SqlDB, now: func() time.Time { return db.now() }}
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
func (r *UserRepository) WithinTx(ctx context.Context, fn func(users domain.UserRepository) error) (err error) {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&UserRepository{q: tx, now: r.now}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("query user by id", err)
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("query user by email", err)
	}
	return user, nil
}

func (r *UserRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, storageErr("check user id", err)
	}
	return exists, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists)
	if err != nil {
		return false, storageErr("check user email", err)
	}
	return exists, nil
}

func (r *UserRepository) FindAll(ctx context.Context, req domain.PageRequest) (domain.Page[domain.User], error) {
	return r.findPage(ctx, req, "", "list users")
}

func (r *UserRepository) FindActive(ctx context.Context, req domain.PageRequest) (domain.Page[domain.User], error) {
	return r.findPage(ctx, req, "WHERE is_active = TRUE", "list active users")
}

func (r *UserRepository) findPage(ctx context.Context, req domain.PageRequest, where, op string) (domain.Page[domain.User], error) {
	orderBy, err := orderClause(req.Sort)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}

	var total int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users `+where).Scan(&total); err != nil {
		return domain.Page[domain.User]{}, storageErr(op, err)
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users `+where+` `+orderBy+` LIMIT ? OFFSET ?`,
		req.Size, req.Offset())
	if err != nil {
		return domain.Page[domain.User]{}, storageErr(op, err)
	}
	defer rows.Close()

	users, err := scanUsers(rows)
	if err != nil {
		return domain.Page[domain.User]{}, storageErr(op, err)
	}
	return domain.NewPage(users, req, total), nil
}

func (r *UserRepository) SearchByFullName(ctx context.Context, fragment string) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE unicode_lower(first_name || ' ' || last_name) LIKE '%' || unicode_lower(?) || '%' ESCAPE '\'
		 ORDER BY id`, escapeLike(fragment))
	if err != nil {
		return nil, storageErr("search users by name", err)
	}
	defer rows.Close()

	users, err := scanUsers(rows)
	if err != nil {
		return nil, storageErr("search users by name", err)
	}
	return users, nil
}

func (r *UserRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	if err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE is_active = TRUE`).Scan(&count); err != nil {
		return 0, storageErr("count active users", err)
	}
	return count, nil
}

func (r *UserRepository) FindCreatedBetween(ctx context.Context, start, end time.Time) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE created_at BETWEEN ? AND ?
		 ORDER BY created_at, id`, start.UnixMicro(), end.UnixMicro())
	if err != nil {
		return nil, storageErr("list users created between", err)
	}
	defer rows.Close()

	users, err := scanUsers(rows)
	if err != nil {
		return nil, storageErr("list users created between", err)
	}
	return users, nil
}

func (r *UserRepository) FindWithPortfolios(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users u
		 WHERE EXISTS (SELECT 1 FROM portfolios p WHERE p.user_id = u.id)
		 ORDER BY u.id`)
	if err != nil {
		return nil, storageErr("list users with portfolios", err)
	}
	defer rows.Close()

	users, err := scanUsers(rows)
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
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO users (email, first_name, last_name, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.Email, user.FirstName, user.LastName, user.IsActive, now.UnixMicro(), now.UnixMicro(),
	)
	if err != nil {
		if classifyConstraint(err) == uniqueConstraint {
			return domain.ErrDuplicateEmail
		}
		return storageErr("insert user", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storageErr("get last insert id", err)
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

	result, err := r.q.ExecContext(ctx,
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email, user.FirstName, user.LastName, user.IsActive, now.UnixMicro(), user.ID,
	)
	if err != nil {
		if classifyConstraint(err) == uniqueConstraint {
			return domain.ErrDuplicateEmail
		}
		return storageErr("update user", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return storageErr("check rows affected", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	user.UpdatedAt = now
	return nil
}

func (r *UserRepository) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		if classifyConstraint(err) == foreignKeyConstraint {
			return domain.ErrUserHasPortfolios
		}
		return storageErr("delete user", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return storageErr("check rows affected", err)
	}
	if n == 0 {
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

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		u                domain.User
		created, updated int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.IsActive, &created, &updated); err != nil {
		return nil, err
	}
	u.CreatedAt = time.UnixMicro(created).UTC()
	u.UpdatedAt = time.UnixMicro(updated).UTC()
	return &u, nil
}

func scanUsers(rows *sql.Rows) ([]domain.User, error) {
	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
