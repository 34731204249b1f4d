package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/setlister/internal/model"
)

// PostgresPlaylistRepo はPostgreSQLを使用したプレイリストリポジトリ。
type PostgresPlaylistRepo struct {
	db *sql.DB
}

// NewPostgresPlaylistRepo はPostgresPlaylistRepoを生成する。
func NewPostgresPlaylistRepo(db *sql.DB) *PostgresPlaylistRepo {
	return &PostgresPlaylistRepo{db: db}
}

const playlistColumns = `id, owner_id, provider_playlist_id, source_setlist_key, created_at, share_id, is_public, share_count`

func scanPlaylist(row interface{ Scan(...any) error }) (*model.Playlist, error) {
	p := &model.Playlist{}
	var shareID sql.NullString
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.ProviderPlaylistID, &p.SourceSetlistKey,
		&p.CreatedAt, &shareID, &p.IsPublic, &p.ShareCount,
	)
	if err != nil {
		return nil, err
	}
	if shareID.Valid {
		p.ShareID = &shareID.String
	}
	return p, nil
}

// Insert はプレイリスト記録を作成する。
func (r *PostgresPlaylistRepo) Insert(ctx context.Context, ownerID, providerPlaylistID, sourceSetlistKey string) (*model.Playlist, error) {
	p, err := scanPlaylist(r.db.QueryRowContext(ctx,
		`INSERT INTO playlists (owner_id, provider_playlist_id, source_setlist_key)
		 VALUES ($1, $2, $3)
		 RETURNING `+playlistColumns,
		ownerID, providerPlaylistID, sourceSetlistKey,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("failed to insert playlist: %w", model.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert playlist: %w", err)
	}
	return p, nil
}

// FindByIDForOwner は所有者が一致するプレイリストを取得する。見つからない場合はnilを返す。
func (r *PostgresPlaylistRepo) FindByIDForOwner(ctx context.Context, id int64, ownerID string) (*model.Playlist, error) {
	p, err := scanPlaylist(r.db.QueryRowContext(ctx,
		`SELECT `+playlistColumns+` FROM playlists WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find playlist: %w", err)
	}
	return p, nil
}

// FindByShareID は公開中のプレイリストを共有IDで取得する。見つからない場合はnilを返す。
func (r *PostgresPlaylistRepo) FindByShareID(ctx context.Context, shareID string) (*model.Playlist, error) {
	p, err := scanPlaylist(r.db.QueryRowContext(ctx,
		`SELECT `+playlistColumns+` FROM playlists WHERE share_id = $1 AND is_public = true`,
		shareID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find playlist by share ID: %w", err)
	}
	return p, nil
}

// ListByOwner は所有者のプレイリスト一覧を作成日時の降順で返す。
func (r *PostgresPlaylistRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Playlist, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+playlistColumns+` FROM playlists WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*model.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate playlists: %w", err)
	}
	return playlists, nil
}

// SetShare は共有IDが未設定の場合のみ設定し、公開状態にする。
// 単一のUPDATE文で行うため、同時実行時も共有IDが上書きされることはない。
func (r *PostgresPlaylistRepo) SetShare(ctx context.Context, id int64, shareID string) (string, error) {
	var effective string
	err := r.db.QueryRowContext(ctx,
		`UPDATE playlists
		 SET share_id = COALESCE(share_id, $2), is_public = true
		 WHERE id = $1
		 RETURNING share_id`,
		id, shareID,
	).Scan(&effective)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("playlist %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("share id collision: %w", model.ErrConflict)
		}
		return "", fmt.Errorf("failed to set share id: %w", err)
	}
	return effective, nil
}

// IncrementShareCount は共有回数を1増やし、更新後の値を返す。
func (r *PostgresPlaylistRepo) IncrementShareCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`UPDATE playlists SET share_count = share_count + 1 WHERE id = $1 RETURNING share_count`,
		id,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("playlist %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment share count: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ PlaylistRepository = (*PostgresPlaylistRepo)(nil)
