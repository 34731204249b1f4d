// Package logger は構造化ログ出力の設定を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Options はロガーの出力設定。
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json または text
}

// New は設定に応じたslog.Loggerを生成する。デフォルトはJSON形式。
// Formatが "text" の場合は開発向けに色付きのテキスト形式で出力する。
func New(w io.Writer, opts Options) *slog.Logger {
	level := parseLevel(opts.Level)

	if strings.EqualFold(opts.Format, "text") {
		handler := charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			Level:           charmlog.Level(level),
		})
		return slog.New(handler)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault は構造化ログ出力をグローバルロガーとして設定する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer, opts Options) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	l := New(w, opts)
	slog.SetDefault(l)
	return l
}

// parseLevel はログレベル名をslog.Levelに変換する。不明な値はinfoとする。
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
