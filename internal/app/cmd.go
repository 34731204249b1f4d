package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/hitoshi/setlister/internal/tracing"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

const serviceName = "setlister"

// NewCommand はサブコマンドを登録したCLIのルートコマンドを生成する。
// サブコマンドを省略した場合は serve として起動する。
func NewCommand(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:      serviceName,
		Usage:     "Turn concert setlists into Spotify playlists",
		Writer:    w,
		ErrWriter: w,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
				Sources: cli.EnvVars("SETLISTER_CONFIG"),
			},
		},
		Action: startAction(w, CommandServe),
		Commands: []*cli.Command{
			{
				Name:   string(CommandServe),
				Usage:  "Start the API server",
				Action: startAction(w, CommandServe),
			},
			{
				Name:   string(CommandWorker),
				Usage:  "Purge expired sessions periodically",
				Action: startAction(w, CommandWorker),
			},
			{
				Name:   string(CommandMigrate),
				Usage:  "Apply pending database migrations",
				Action: startAction(w, CommandMigrate),
			},
			{
				// 軽量サブコマンドのため設定の読み込みを行わない
				Name:  string(CommandHealthcheck),
				Usage: "Probe the local API server's /health endpoint",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Usage:   "Port the API server listens on",
						Value:   "8080",
						Sources: cli.EnvVars("SERVER_PORT"),
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return runHealthcheck(c.String("port"))
				},
			},
		},
	}
}

// startAction は設定とログを初期化してから指定モードで起動するActionを返す。
func startAction(w io.Writer, cmd Command) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		cfg, err := Init(w, c.String("config"))
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}

		slog.Info("starting application",
			slog.String("command", string(cmd)),
			slog.String("port", cfg.ServerPort),
			slog.String("base_url", cfg.BaseURL),
		)

		if cmd == CommandMigrate {
			return runMigrate(cfg)
		}

		shutdownTracing, err := tracing.Setup(ctx, serviceName+"-"+string(cmd), cfg.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				slog.Warn("tracing shutdown failed", slog.String("error", err.Error()))
			}
		}()

		if cmd == CommandWorker {
			return runWorker(cfg)
		}
		return runServe(cfg)
	}
}
