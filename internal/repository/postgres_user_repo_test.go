package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/setlister/internal/model"
)

func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	if repo := NewPostgresUserRepo(nil); repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Upsertは同一Spotify IDに対して1ユーザーのみを維持し、トークンを更新すること
func TestPostgresUserRepo_Upsert_OneUserPerExternalID(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	first, err := repo.Upsert(ctx, &model.User{
		ExternalID:     "spotify-user-1",
		DisplayName:    "Alice",
		AccessToken:    "access-1",
		RefreshToken:   "refresh-1",
		TokenExpiresAt: expires,
	})
	if err != nil {
		t.Fatalf("Upsert (insert) error: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated user ID")
	}

	second, err := repo.Upsert(ctx, &model.User{
		ExternalID:     "spotify-user-1",
		DisplayName:    "Alice",
		AccessToken:    "access-2",
		TokenExpiresAt: expires.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Upsert (update) error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("user ID changed on re-login: got %q, want %q", second.ID, first.ID)
	}
	if second.AccessToken != "access-2" {
		t.Errorf("AccessToken = %q, want %q", second.AccessToken, "access-2")
	}
	// 空のリフレッシュトークンでは既存値を維持する
	if second.RefreshToken != "refresh-1" {
		t.Errorf("RefreshToken = %q, want %q", second.RefreshToken, "refresh-1")
	}

	found, err := repo.FindByExternalID(ctx, "spotify-user-1")
	if err != nil {
		t.Fatalf("FindByExternalID error: %v", err)
	}
	if found == nil || found.ID != first.ID {
		t.Errorf("FindByExternalID returned %+v, want user %q", found, first.ID)
	}
}

func TestPostgresUserRepo_FindByID_NotFound(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewPostgresUserRepo(db)

	user, err := repo.FindByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user, got %+v", user)
	}
}

func TestPostgresUserRepo_UpdateTokens(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	user, err := repo.Upsert(ctx, &model.User{
		ExternalID:     "spotify-user-2",
		AccessToken:    "old",
		RefreshToken:   "refresh",
		TokenExpiresAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	newExpiry := time.Now().Add(time.Hour)
	if err := repo.UpdateTokens(ctx, user.ID, "new", "", newExpiry); err != nil {
		t.Fatalf("UpdateTokens error: %v", err)
	}

	got, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if got.AccessToken != "new" {
		t.Errorf("AccessToken = %q, want %q", got.AccessToken, "new")
	}
	if got.RefreshToken != "refresh" {
		t.Errorf("RefreshToken = %q, want %q", got.RefreshToken, "refresh")
	}

	err = repo.UpdateTokens(ctx, "00000000-0000-0000-0000-000000000000", "x", "", newExpiry)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("UpdateTokens for unknown user: got %v, want ErrNotFound", err)
	}
}
