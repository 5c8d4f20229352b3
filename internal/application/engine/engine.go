package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
	"github.com/genbi-core/genbi-mcp/pkg/logger"
)

// Result はツール実行の結果。一度構築されたら変更されない
type Result struct {
	ToolName string
	Success  bool
	Data     interface{}
	Err      *tool.Error // 失敗時のみ非nil
	Duration time.Duration
}

// Engine はツール実行エンジン。
// 引数検証・実行・タイムアウト・結果の正規化を担う
type Engine struct {
	registry       *tool.Registry
	defaultTimeout time.Duration
}

// New は新しいEngineを作成
func New(registry *tool.Registry, defaultTimeout time.Duration) *Engine {
	return &Engine{
		registry:       registry,
		defaultTimeout: defaultTimeout,
	}
}

// Execute は名前で指定されたツールを検証付きで実行する。
// timeoutが0以下の場合はエンジンのデフォルトを使用。
// デッドライン超過時は呼び出し側から見て実行を放棄し
// ExecutionTimeoutErrorを返す（裏で動いている処理の停止は保証しない）
func (e *Engine) Execute(ctx context.Context, name string, args map[string]interface{}, timeout time.Duration) Result {
	start := time.Now()

	t, err := e.registry.Get(name)
	if err != nil {
		return e.fail(name, err, start)
	}

	applied, err := tool.ValidateArguments(t.Parameters(), args)
	if err != nil {
		return e.fail(name, err, start)
	}

	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		data interface{}
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			// ツールのpanicはセッションを道連れにしない
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		data, err := t.Execute(execCtx, applied)
		done <- outcome{data: data, err: err}
	}()

	select {
	case <-execCtx.Done():
		kind := tool.KindExecutionTimeout
		if errors.Is(execCtx.Err(), context.Canceled) {
			kind = tool.KindToolExecution
		}
		logger.WarnCF("engine", "tool.timeout", map[string]interface{}{
			"tool":       name,
			"timeout_ms": timeout.Milliseconds(),
		})
		return e.fail(name, tool.WrapError(kind, execCtx.Err(), "tool %q did not complete within %s", name, timeout), start)

	case out := <-done:
		duration := time.Since(start)
		if out.err != nil {
			// ツール内部のエラーはToolExecutionErrorに正規化
			wrapped := tool.WrapError(tool.KindToolExecution, out.err, "tool %q failed: %v", name, out.err)
			logger.WarnCF("engine", "tool.failed", map[string]interface{}{
				"tool":  name,
				"error": out.err.Error(),
			})
			return Result{ToolName: name, Success: false, Err: wrapped, Duration: duration}
		}

		logger.DebugCF("engine", "tool.completed", map[string]interface{}{
			"tool":        name,
			"duration_ms": duration.Milliseconds(),
		})
		return Result{ToolName: name, Success: true, Data: out.data, Duration: duration}
	}
}

// fail は失敗結果を正規化して返す
func (e *Engine) fail(name string, err error, start time.Time) Result {
	var te *tool.Error
	if !errors.As(err, &te) {
		te = tool.WrapError(tool.KindToolExecution, err, "%v", err)
	}
	return Result{
		ToolName: name,
		Success:  false,
		Err:      te,
		Duration: time.Since(start),
	}
}
