package mcp

import (
	"encoding/json"
	"errors"

	"github.com/genbi-core/genbi-mcp/internal/application/engine"
	"github.com/genbi-core/genbi-mcp/internal/domain/resource"
	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
)

// ProtocolVersion はMCPプロトコルバージョン
const ProtocolVersion = "2024-11-05"

// MCPメソッド
const (
	MethodHello         = "hello"
	MethodListTools     = "tools/list"
	MethodCallTool      = "tools/call"
	MethodListResources = "resources/list"
	MethodReadResource  = "resources/read"
)

// Request はMCPリクエストエンベロープ。
// idはセッション内で実行中のリクエスト間で一意
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ErrorPayload は種別付きのエラー表現。
// 生のスタックトレースは決して載せない
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Response はMCPレスポンスエンベロープ。
// 必ず元リクエストのidを持つ
type Response struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// ServerInfo はサーバー識別情報
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HelloParams はhelloリクエストのパラメータ
type HelloParams struct {
	ClientName string `json:"client_name,omitempty"`
}

// HelloResult はhelloレスポンス
type HelloResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
}

// ListToolsResult はtools/listの結果
type ListToolsResult struct {
	Tools []tool.Schema `json:"tools"`
}

// CallToolParams はtools/callのパラメータ
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// CallToolResult はtools/callの結果。
// ツールレベルの失敗はここに載る（エンベロープのerrorではなく）
type CallToolResult struct {
	Success    bool          `json:"success"`
	Data       interface{}   `json:"data,omitempty"`
	Error      *ErrorPayload `json:"error,omitempty"`
	DurationMS int64         `json:"duration_ms"`
}

// ListResourcesResult はresources/listの結果
type ListResourcesResult struct {
	Resources []resource.Resource `json:"resources"`
}

// ReadResourceParams はresources/readのパラメータ
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// errorPayload はエラーを種別付きペイロードに変換
func errorPayload(err error) *ErrorPayload {
	var te *tool.Error
	if errors.As(err, &te) {
		return &ErrorPayload{Kind: string(te.Kind), Message: te.Message}
	}
	return &ErrorPayload{Kind: string(tool.KindToolExecution), Message: err.Error()}
}

// callResultFrom は実行結果をワイヤ形式に変換
func callResultFrom(res engine.Result) CallToolResult {
	out := CallToolResult{
		Success:    res.Success,
		Data:       res.Data,
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		out.Error = &ErrorPayload{Kind: string(res.Err.Kind), Message: res.Err.Message}
	}
	return out
}

// newResponse は結果ペイロードからレスポンスを構築
func newResponse(id string, result interface{}) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, tool.WrapError(tool.KindToolExecution, err, "marshal result: %v", err))
	}
	return Response{JSONRPC: "2.0", ID: id, Result: data}
}

// errorResponse はエラーレスポンスを構築
func errorResponse(id string, err error) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: errorPayload(err)}
}
