package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/portfolio-users/internal/domain"
	"github.com/msomdec/portfolio-users/internal/repository/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func saveUser(t *testing.T, repo *sqlite.UserRepository, email, first, last string) *domain.User {
	t.Helper()
	u := domain.NewUser(email, first, last)
	if err := repo.Save(context.Background(), u); err != nil {
		t.Fatalf("Save %s: %v", email, err)
	}
	return u
}

func addPortfolio(t *testing.T, db *sqlite.DB, userID int64) {
	t.Helper()
	_, err := db.SqlDB.Exec(
		"INSERT INTO portfolios (user_id, name, created_at) VALUES (?, ?, ?)",
		userID, "Retirement", time.Now().UnixMicro())
	if err != nil {
		t.Fatalf("insert portfolio: %v", err)
	}
}

func TestUserRepository_SaveInsert(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)

	user := saveUser(t, repo, "test@example.com", "Test", "User")

	if user.ID == 0 {
		t.Fatal("expected user ID to be set after save")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
	if !user.CreatedAt.Equal(user.UpdatedAt) {
		t.Fatalf("expected created_at == updated_at on insert, got %v and %v", user.CreatedAt, user.UpdatedAt)
	}
}

func TestUserRepository_SaveInsert_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	saveUser(t, repo, "dup@example.com", "User", "One")

	err := repo.Save(ctx, domain.NewUser("dup@example.com", "User", "Two"))
	if !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestUserRepository_SaveUpdate(t *testing.T) {
	db := newTestDB(t)
	db.SetClock(steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	user := saveUser(t, repo, "update@example.com", "Old", "Name")
	created := user.CreatedAt

	user.FirstName = "New"
	user.Deactivate()
	if err := repo.Save(ctx, user); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	found, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found.FirstName != "New" || found.LastName != "Name" {
		t.Fatalf("unexpected names %q %q", found.FirstName, found.LastName)
	}
	if found.IsActive {
		t.Fatal("expected user to be inactive")
	}
	if !found.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at to stay %v, got %v", created, found.CreatedAt)
	}
	if !found.UpdatedAt.After(created) {
		t.Fatalf("expected updated_at %v to be after created_at %v", found.UpdatedAt, created)
	}
}

func TestUserRepository_SaveUpdate_UpdatedAtNeverMovesBack(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	user := saveUser(t, repo, "clock@example.com", "Clock", "Skew")
	future := user.UpdatedAt.Add(time.Hour)
	user.UpdatedAt = future

	if err := repo.Save(ctx, user); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !user.UpdatedAt.Equal(future) {
		t.Fatalf("expected updated_at to stay at %v, got %v", future, user.UpdatedAt)
	}
}

func TestUserRepository_SaveUpdate_Missing(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)

	ghost := &domain.User{ID: 999, Email: "ghost@example.com", FirstName: "G", LastName: "H"}
	if err := repo.Save(context.Background(), ghost); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_FindByID(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	user := saveUser(t, repo, "byid@example.com", "By", "Id")

	found, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found.Email != user.Email {
		t.Fatalf("expected email %q, got %q", user.Email, found.Email)
	}
	if !found.CreatedAt.Equal(user.CreatedAt) {
		t.Fatalf("expected created_at %v to round-trip, got %v", user.CreatedAt, found.CreatedAt)
	}

	if _, err := repo.FindByID(ctx, 99999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_FindByEmail(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	user := saveUser(t, repo, "byemail@example.com", "By", "Email")

	found, err := repo.FindByEmail(ctx, "byemail@example.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if found.ID != user.ID {
		t.Fatalf("expected id %d, got %d", user.ID, found.ID)
	}

	// Exact, case-sensitive match on the business key.
	if _, err := repo.FindByEmail(ctx, "BYEMAIL@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for different case, got %v", err)
	}
}

func TestUserRepository_Exists(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	user := saveUser(t, repo, "exists@example.com", "Ex", "Ists")

	ok, err := repo.ExistsByEmail(ctx, "exists@example.com")
	if err != nil || !ok {
		t.Fatalf("ExistsByEmail = %v, %v; want true", ok, err)
	}
	ok, err = repo.ExistsByEmail(ctx, "missing@example.com")
	if err != nil || ok {
		t.Fatalf("ExistsByEmail(missing) = %v, %v; want false", ok, err)
	}
	ok, err = repo.ExistsByID(ctx, user.ID)
	if err != nil || !ok {
		t.Fatalf("ExistsByID = %v, %v; want true", ok, err)
	}
	ok, err = repo.ExistsByID(ctx, user.ID+100)
	if err != nil || ok {
		t.Fatalf("ExistsByID(missing) = %v, %v; want false", ok, err)
	}
}

func TestUserRepository_FindAll_Paged(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	saveUser(t, repo, "c@example.com", "Carol", "Zed")
	saveUser(t, repo, "a@example.com", "Alice", "Young")
	saveUser(t, repo, "b@example.com", "Bob", "Xu")

	sort, _ := domain.NewSort("firstName", "asc")
	req, _ := domain.NewPageRequest(0, 2, sort)

	page, err := repo.FindAll(ctx, req)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if page.TotalElements != 3 {
		t.Fatalf("expected 3 total, got %d", page.TotalElements)
	}
	if len(page.Content) != 2 || page.Content[0].FirstName != "Alice" || page.Content[1].FirstName != "Bob" {
		t.Fatalf("unexpected first page %+v", page.Content)
	}

	req.Page = 1
	page, err = repo.FindAll(ctx, req)
	if err != nil {
		t.Fatalf("FindAll page 1: %v", err)
	}
	if len(page.Content) != 1 || page.Content[0].FirstName != "Carol" {
		t.Fatalf("unexpected second page %+v", page.Content)
	}

	desc, _ := domain.NewSort("email", "desc")
	req, _ = domain.NewPageRequest(0, 10, desc)
	page, err = repo.FindAll(ctx, req)
	if err != nil {
		t.Fatalf("FindAll desc: %v", err)
	}
	if page.Content[0].Email != "c@example.com" {
		t.Fatalf("expected c@example.com first, got %s", page.Content[0].Email)
	}
}

func TestUserRepository_FindActive(t *testing.T) {
	db := newTestDB(t)
	db.SetClock(steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	saveUser(t, repo, "old@example.com", "Old", "Active")
	inactive := saveUser(t, repo, "off@example.com", "Off", "Line")
	saveUser(t, repo, "new@example.com", "New", "Active")

	inactive.Deactivate()
	if err := repo.Save(ctx, inactive); err != nil {
		t.Fatalf("Save: %v", err)
	}

	sort, _ := domain.NewSort("createdAt", "desc")
	req, _ := domain.NewPageRequest(0, 10, sort)
	page, err := repo.FindActive(ctx, req)
	if err != nil {
		t.Fatalf("FindActive: %v", err)
	}
	if page.TotalElements != 2 {
		t.Fatalf("expected 2 active users, got %d", page.TotalElements)
	}
	if page.Content[0].Email != "new@example.com" || page.Content[1].Email != "old@example.com" {
		t.Fatalf("expected newest first, got %s, %s", page.Content[0].Email, page.Content[1].Email)
	}

	count, err := repo.CountActive(ctx)
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
}

func TestUserRepository_SearchByFullName(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	saveUser(t, repo, "john@example.com", "John", "Smith")
	saveUser(t, repo, "jane@example.com", "Jane", "Johnson")
	saveUser(t, repo, "pct@example.com", "100%", "Sure")
	saveUser(t, repo, "emile@example.com", "Émile", "Zola")

	tests := []struct {
		fragment string
		want     int
	}{
		{"", 4},
		{"JOHN", 2},
		{"john smith", 1},
		{"n s", 1},
		{"%", 1},
		{"_", 0},
		{"nobody", 0},
		{"Émile", 1},
		{"émile", 1},
		{"ÉMILE ZOLA", 1},
		{"e z", 1},
	}
	for _, tc := range tests {
		users, err := repo.SearchByFullName(ctx, tc.fragment)
		if err != nil {
			t.Fatalf("SearchByFullName(%q): %v", tc.fragment, err)
		}
		if len(users) != tc.want {
			t.Fatalf("SearchByFullName(%q): expected %d users, got %d", tc.fragment, tc.want, len(users))
		}
	}
}

func TestUserRepository_FindCreatedBetween(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	db.SetClock(steppingClock(start))
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	first := saveUser(t, repo, "first@example.com", "First", "User")
	second := saveUser(t, repo, "second@example.com", "Second", "User")
	saveUser(t, repo, "third@example.com", "Third", "User")

	users, err := repo.FindCreatedBetween(ctx, first.CreatedAt, second.CreatedAt)
	if err != nil {
		t.Fatalf("FindCreatedBetween: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected inclusive range to return 2 users, got %d", len(users))
	}
	if users[0].ID != first.ID || users[1].ID != second.ID {
		t.Fatalf("unexpected users %+v", users)
	}

	users, err = repo.FindCreatedBetween(ctx, start.Add(time.Hour), start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("FindCreatedBetween empty: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected no users, got %d", len(users))
	}
}

func TestUserRepository_DeleteByID(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	user := saveUser(t, repo, "delete@example.com", "Del", "Ete")

	if err := repo.DeleteByID(ctx, user.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if _, err := repo.FindByID(ctx, user.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.DeleteByID(ctx, user.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUserRepository_PortfolioOwnership(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	owner := saveUser(t, repo, "owner@example.com", "Port", "Folio")
	saveUser(t, repo, "plain@example.com", "No", "Folio")
	addPortfolio(t, db, owner.ID)

	users, err := repo.FindWithPortfolios(ctx)
	if err != nil {
		t.Fatalf("FindWithPortfolios: %v", err)
	}
	if len(users) != 1 || users[0].ID != owner.ID {
		t.Fatalf("expected only the owner, got %+v", users)
	}

	if err := repo.DeleteByID(ctx, owner.ID); !errors.Is(err, domain.ErrUserHasPortfolios) {
		t.Fatalf("expected ErrUserHasPortfolios, got %v", err)
	}
	if ok, _ := repo.ExistsByID(ctx, owner.ID); !ok {
		t.Fatal("expected owner to survive a restricted delete")
	}
}

func TestUserRepository_WithinTx_Rollback(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(users domain.UserRepository) error {
		if err := users.Save(ctx, domain.NewUser("tx@example.com", "In", "Tx")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	ok, err := repo.ExistsByEmail(ctx, "tx@example.com")
	if err != nil {
		t.Fatalf("ExistsByEmail: %v", err)
	}
	if ok {
		t.Fatal("expected insert to be rolled back")
	}
}

func TestUserRepository_WithinTx_Commit(t *testing.T) {
	db := newTestDB(t)
	repo := sqlite.NewUserRepository(db)
	ctx := context.Background()

	var id int64
	err := repo.WithinTx(ctx, func(users domain.UserRepository) error {
		u := domain.NewUser("commit@example.com", "Com", "Mit")
		if err := users.Save(ctx, u); err != nil {
			return err
		}
		id = u.ID
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	if _, err := repo.FindByID(ctx, id); err != nil {
		t.Fatalf("expected committed user, got %v", err)
	}
}
