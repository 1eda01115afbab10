package app

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はストアのスキーマ（SQLマイグレーションまたはMongoDBインデックス）を適用することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// defaultServerPort はSERVER_PORT未設定時のポート。
const defaultServerPort = "8000"

// NewRootCommand はtaskmanのルートコマンドを生成する。
// サブコマンド未指定の場合はserveとして動作する。
// ログはwに出力する。
func NewRootCommand(w io.Writer) *cobra.Command {
	var migrateFirst bool

	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, err := Init(w)
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg, migrateFirst)
	}

	root := &cobra.Command{
		Use:           "taskman",
		Short:         "Multi-user task tracker API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.Flags().BoolVar(&migrateFirst, "migrate", false, "apply store schema before serving")

	serveCmd := &cobra.Command{
		Use:   string(CommandServe),
		Short: "Run the HTTP API server",
		RunE:  serve,
	}
	serveCmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply store schema before serving")

	migrateCmd := &cobra.Command{
		Use:   string(CommandMigrate),
		Short: "Apply SQL migrations or MongoDB indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := Init(w)
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg)
		},
	}

	var port string
	healthcheckCmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "Check the local /health endpoint",
		// healthcheck は軽量サブコマンドのため、設定の読み込みをスキップする
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealthcheck(cmd.Context(), port)
		},
	}
	healthcheckCmd.Flags().StringVar(&port, "port", envOrDefault("SERVER_PORT", defaultServerPort), "server port to check")

	root.AddCommand(serveCmd, migrateCmd, healthcheckCmd)
	return root
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
