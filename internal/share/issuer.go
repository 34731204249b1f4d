package share

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/hitoshi/setlister/internal/model"
)

const (
	// shareIDLength は共有IDの文字数。
	shareIDLength = 12
	// shareIDAlphabet はURLにそのまま埋め込める64文字。
	shareIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
)

// generateShareID は暗号的に安全な乱数から共有IDを生成する。
// アルファベットが64文字のため、下位6ビットを使えば偏りは生じない。
func generateShareID() (string, error) {
	b := make([]byte, shareIDLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = shareIDAlphabet[b[i]&63]
	}
	return string(b), nil
}

// isValidShareID は共有IDの形式を検証する。
func isValidShareID(id string) bool {
	if len(id) != shareIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// issueState は共有ID採番の状態。
type issueState int

const (
	stateIdle issueState = iota
	stateGenerated
	stateCollided
	stateRegenerated
	statePersisted
	stateFailed
)

func (s issueState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateGenerated:
		return "generated"
	case stateCollided:
		return "collided"
	case stateRegenerated:
		return "regenerated"
	case statePersisted:
		return "persisted"
	case stateFailed:
		return "failed"
	}
	return fmt.Sprintf("issueState(%d)", int(s))
}

// shareStore は共有IDを永続化するインターフェース。
type shareStore interface {
	SetShare(ctx context.Context, id int64, shareID string) (string, error)
}

// issuer は共有IDを採番して永続化する。
// 一意制約違反の場合は一度だけ再採番し、再度衝突した場合は model.ErrConflict を返す。
//
//	Idle → Generated → Persisted
//	          ↓
//	       Collided → Regenerated → Persisted
//	                       ↓
//	                     Failed
type issuer struct {
	store    shareStore
	generate func() (string, error)
}

func newIssuer(store shareStore) *issuer {
	return &issuer{store: store, generate: generateShareID}
}

// issue は共有IDを採番し、永続化された有効な共有IDを返す。
// 同時実行で他のリクエストが先に設定した場合はその共有IDが返る。
func (i *issuer) issue(ctx context.Context, playlistID int64) (string, issueState, error) {
	state := stateIdle

	for {
		candidate, err := i.generate()
		if err != nil {
			return "", stateFailed, fmt.Errorf("failed to generate share id: %w", err)
		}
		switch state {
		case stateIdle:
			state = stateGenerated
		case stateCollided:
			state = stateRegenerated
		}

		effective, err := i.store.SetShare(ctx, playlistID, candidate)
		if err == nil {
			return effective, statePersisted, nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return "", stateFailed, err
		}

		if state == stateRegenerated {
			return "", stateFailed, fmt.Errorf("share id collided twice: %w", model.ErrConflict)
		}
		state = stateCollided
	}
}
