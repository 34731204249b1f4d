package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/setlister/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, spotify_id, display_name, access_token, refresh_token, token_expires_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.ExternalID, &user.DisplayName,
		&user.AccessToken, &user.RefreshToken, &user.TokenExpiresAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByExternalID はSpotifyユーザーIDでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE spotify_id = $1`, externalID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by spotify ID: %w", err)
	}
	return user, nil
}

// Upsert はSpotifyユーザーIDをキーにユーザーを作成、または既存ユーザーのトークンを更新する。
// リフレッシュトークンが空の場合は既存の値を維持する。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	saved, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (spotify_id, display_name, access_token, refresh_token, token_expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (spotify_id) DO UPDATE SET
		     display_name = EXCLUDED.display_name,
		     access_token = EXCLUDED.access_token,
		     refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), users.refresh_token),
		     token_expires_at = EXCLUDED.token_expires_at,
		     updated_at = now()
		 RETURNING `+userColumns,
		user.ExternalID, user.DisplayName, user.AccessToken, user.RefreshToken, user.TokenExpiresAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return saved, nil
}

// UpdateTokens はトークンとその有効期限を更新する。
// リフレッシュトークンが空の場合は既存の値を維持する。
func (r *PostgresUserRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET
		     access_token = $2,
		     refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
		     token_expires_at = $4,
		     updated_at = now()
		 WHERE id = $1`,
		id, accessToken, refreshToken, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user tokens: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
