package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/genbi-core/genbi-mcp/internal/domain/resource"
	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
	"github.com/genbi-core/genbi-mcp/pkg/logger"
)

// Client はリモートMCPサーバーへのクライアント。
// リクエストidの採番と相関はClientが担い、タイムアウト後の
// 遅延レスポンスは破棄する。再接続は自動では行わない
// （切断はConnectionLostErrorとして呼び出し側に通知）
type Client struct {
	url              string
	clientName       string
	handshakeTimeout time.Duration

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Response

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  *tool.Error
}

// NewClient は新しいMCPクライアントを作成。
// urlは ws://host:port/mcp 形式
func NewClient(url, clientName string, handshakeTimeout time.Duration) *Client {
	return &Client{
		url:              url,
		clientName:       clientName,
		handshakeTimeout: handshakeTimeout,
		pending:          make(map[string]chan Response),
		closed:           make(chan struct{}),
	}
}

// Connect はサーバーに接続してハンドシェイクを行う
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return tool.WrapError(tool.KindConnectionLost, err, "dial %s: %v", c.url, err)
	}
	c.conn = conn

	// helloはreadLoop開始前に同期的に交換する
	helloID := uuid.New().String()
	params, _ := json.Marshal(HelloParams{ClientName: c.clientName})
	if err := c.write(Request{JSONRPC: "2.0", ID: helloID, Method: MethodHello, Params: params}); err != nil {
		conn.Close()
		return tool.WrapError(tool.KindConnectionLost, err, "send hello: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.handshakeTimeout))
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		conn.Close()
		if isTimeout(err) {
			return tool.NewError(tool.KindHandshakeTimeout, "handshake did not complete within %s", c.handshakeTimeout)
		}
		return tool.WrapError(tool.KindConnectionLost, err, "read hello response: %v", err)
	}
	conn.SetReadDeadline(time.Time{})

	// helloの応答も他のリクエストと同様にidで相関する
	if resp.ID != helloID {
		conn.Close()
		return tool.NewError(tool.KindProtocol, "hello response id %q does not match request id %q", resp.ID, helloID)
	}

	if resp.Error != nil {
		conn.Close()
		return tool.NewError(tool.Kind(resp.Error.Kind), "%s", resp.Error.Message)
	}

	var hello HelloResult
	if err := json.Unmarshal(resp.Result, &hello); err != nil {
		conn.Close()
		return tool.WrapError(tool.KindProtocol, err, "malformed hello response: %v", err)
	}

	logger.InfoCF("mcp.client", "connected", map[string]interface{}{
		"url":              c.url,
		"server":           hello.ServerInfo.Name,
		"protocol_version": hello.ProtocolVersion,
	})

	go c.readLoop()
	return nil
}

// Disconnect は接続を明示的に閉じる
func (c *Client) Disconnect() error {
	c.fail(tool.NewError(tool.KindSessionClosed, "client disconnected"))
	return nil
}

// ListTools はサーバーのツール一覧を取得
func (c *Client) ListTools(ctx context.Context, timeout time.Duration) ([]tool.Schema, error) {
	raw, err := c.call(ctx, MethodListTools, struct{}{}, timeout)
	if err != nil {
		return nil, err
	}
	var result ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, tool.WrapError(tool.KindProtocol, err, "malformed tools/list result: %v", err)
	}
	return result.Tools, nil
}

// CallTool は指定されたツールをリモートで実行
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}, timeout time.Duration) (CallToolResult, error) {
	raw, err := c.call(ctx, MethodCallTool, CallToolParams{Name: name, Arguments: args}, timeout)
	if err != nil {
		return CallToolResult{}, err
	}
	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return CallToolResult{}, tool.WrapError(tool.KindProtocol, err, "malformed tools/call result: %v", err)
	}
	return result, nil
}

// ListResources はサーバーのリソース一覧を取得
func (c *Client) ListResources(ctx context.Context, timeout time.Duration) ([]resource.Resource, error) {
	raw, err := c.call(ctx, MethodListResources, struct{}{}, timeout)
	if err != nil {
		return nil, err
	}
	var result ListResourcesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, tool.WrapError(tool.KindProtocol, err, "malformed resources/list result: %v", err)
	}
	return result.Resources, nil
}

// ReadResource はURIで指定されたリソースを読む
func (c *Client) ReadResource(ctx context.Context, uri string, timeout time.Duration) (resource.Content, error) {
	raw, err := c.call(ctx, MethodReadResource, ReadResourceParams{URI: uri}, timeout)
	if err != nil {
		return resource.Content{}, err
	}
	var content resource.Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return resource.Content{}, tool.WrapError(tool.KindProtocol, err, "malformed resources/read result: %v", err)
	}
	return content, nil
}

// call はリクエストを送り、相関するレスポンスかタイムアウトを待つ
func (c *Client) call(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	select {
	case <-c.closed:
		return nil, c.closeErr
	default:
	}

	id := uuid.New().String()
	ch := make(chan Response, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	data, err := json.Marshal(params)
	if err != nil {
		c.discard(id)
		return nil, tool.WrapError(tool.KindProtocol, err, "marshal params: %v", err)
	}

	if err := c.write(Request{JSONRPC: "2.0", ID: id, Method: method, Params: data}); err != nil {
		c.discard(id)
		return nil, tool.WrapError(tool.KindConnectionLost, err, "send %s: %v", method, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, tool.NewError(tool.Kind(resp.Error.Kind), "%s", resp.Error.Message)
		}
		return resp.Result, nil

	case <-timer.C:
		// 以後この相関は破棄（遅延レスポンスはreadLoopが捨てる）
		c.discard(id)
		return nil, tool.NewError(tool.KindClientTimeout, "%s did not complete within %s", method, timeout)

	case <-ctx.Done():
		c.discard(id)
		return nil, tool.WrapError(tool.KindClientTimeout, ctx.Err(), "%s aborted: %v", method, ctx.Err())

	case <-c.closed:
		return nil, c.closeErr
	}
}

// readLoop は受信レスポンスを相関チャネルに配送する
func (c *Client) readLoop() {
	for {
		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.fail(tool.WrapError(tool.KindConnectionLost, err, "connection lost: %v", err))
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if !ok {
			// タイムアウト済みリクエストの遅延レスポンス
			logger.DebugCF("mcp.client", "response.stale", map[string]interface{}{
				"request_id": resp.ID,
			})
			continue
		}
		ch <- resp
	}
}

// write は送信を直列化する
func (c *Client) write(req Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(req)
}

// discard はタイムアウトした相関を破棄
func (c *Client) discard(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// fail は接続を閉じ、以後の呼び出しと待機中の呼び出しを失敗させる
func (c *Client) fail(cause *tool.Error) {
	c.closeOnce.Do(func() {
		c.closeErr = cause
		close(c.closed)
		if c.conn != nil {
			deadline := time.Now().Add(time.Second)
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			c.conn.Close()
		}
	})
}
