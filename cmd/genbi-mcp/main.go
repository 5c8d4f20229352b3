package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genbi-core/genbi-mcp/internal/adapter/config"
	"github.com/genbi-core/genbi-mcp/internal/application/engine"
	"github.com/genbi-core/genbi-mcp/internal/domain/resource"
	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
	"github.com/genbi-core/genbi-mcp/internal/infrastructure/mcp"
	"github.com/genbi-core/genbi-mcp/internal/infrastructure/tools"
	"github.com/genbi-core/genbi-mcp/pkg/health"
	"github.com/genbi-core/genbi-mcp/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetJSONFormat(cfg.Log.Format == "json")

	srv, err := buildServer(cfg)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	// SIGINT/SIGTERMでグレースフルシャットダウン
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Info("main", "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.ErrorCF("main", "shutdown.failed", map[string]interface{}{
				"error": err.Error(),
			})
			os.Exit(1)
		}
		logger.Info("main", "shutdown complete")
	}
}

// buildServer は依存関係を構築する
func buildServer(cfg *config.Config) (*mcp.Server, error) {
	registry := tool.NewRegistry()

	if err := os.MkdirAll(cfg.Tools.Workspace, 0755); err != nil {
		return nil, err
	}
	err := tools.RegisterBuiltins(registry, tools.Config{
		Workspace:           cfg.Tools.Workspace,
		RestrictToWorkspace: cfg.Tools.RestrictToWorkspace,
		HTTPTimeout:         cfg.Tools.HTTPTimeout,
		HTTPMaxBodyBytes:    cfg.Tools.HTTPMaxBodyBytes,
	})
	if err != nil {
		return nil, err
	}

	var provider resource.Provider
	if cfg.Resources.Root != "" {
		provider = resource.NewDirProvider(cfg.Resources.Root)
	}

	eng := engine.New(registry, cfg.Session.CallTimeout)

	srv := mcp.NewServer(mcp.ServerConfig{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		Name:             cfg.Server.Name,
		Version:          cfg.Server.Version,
		HandshakeTimeout: cfg.Session.HandshakeTimeout,
		IdleTimeout:      cfg.Session.IdleTimeout,
		ShutdownGrace:    cfg.Session.ShutdownGrace,
		CallTimeout:      cfg.Session.CallTimeout,
	}, registry, eng, provider)

	srv.AddHealthCheck("workspace", health.WorkspaceCheck(cfg.Tools.Workspace))
	if cfg.Resources.Root != "" {
		srv.AddHealthCheck("resources", health.DirectoryCheck(cfg.Resources.Root))
	}
	return srv, nil
}

// getConfigPath は設定ファイルパスを取得。
// 指定がなく既定のファイルも無い場合はデフォルト設定で起動
func getConfigPath() string {
	if path := os.Getenv("GENBI_MCP_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat("./config.yaml"); err == nil {
		return "./config.yaml"
	}
	return ""
}
