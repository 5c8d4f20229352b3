package tools

import (
	"net/http"
	"time"

	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
	"github.com/genbi-core/genbi-mcp/pkg/logger"
)

// Config は組み込みツールの設定
type Config struct {
	Workspace           string
	RestrictToWorkspace bool
	HTTPTimeout         time.Duration
	HTTPMaxBodyBytes    int64
}

// RegisterBuiltins は組み込みツール一式をレジストリに登録する
func RegisterBuiltins(registry *tool.Registry, cfg Config) error {
	files := NewFileTools(cfg.Workspace, cfg.RestrictToWorkspace)
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	builtins := []tool.Tool{
		NewDataAnalysisTool(files),
		NewStatisticalAnalysisTool(files),
		files.ReadTool(),
		files.WriteTool(),
		files.ListTool(),
		NewHTTPGetTool(httpClient, cfg.HTTPMaxBodyBytes),
	}

	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return err
		}
	}

	logger.InfoCF("tools", "builtins.registered", map[string]interface{}{
		"count":     len(builtins),
		"workspace": cfg.Workspace,
	})
	return nil
}
