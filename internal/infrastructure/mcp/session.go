package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/genbi-core/genbi-mcp/internal/application/engine"
	"github.com/genbi-core/genbi-mcp/internal/domain/resource"
	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
	"github.com/genbi-core/genbi-mcp/pkg/logger"
)

// SessionState はセッションの状態
type SessionState string

const (
	StateConnecting SessionState = "CONNECTING"
	StateHandshaked SessionState = "HANDSHAKED"
	StateActive     SessionState = "ACTIVE"
	StateClosing    SessionState = "CLOSING"
	StateClosed     SessionState = "CLOSED"
)

// SessionConfig はセッションのタイムアウト設定。
// ハードコードせず設定から渡す
type SessionConfig struct {
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
	ShutdownGrace    time.Duration
	CallTimeout      time.Duration
}

// Session は1つの接続済みトランスポートを表す。
// 生成したServerが排他的に所有し、切断またはアイドル
// タイムアウトで破棄される
type Session struct {
	id        string
	conn      *websocket.Conn
	cfg       SessionConfig
	engine    *engine.Engine
	registry  *tool.Registry
	resources resource.Provider
	info      ServerInfo

	// gorilla/websocketは並行書き込みを許さないため書き込みは直列化
	writeMu sync.Mutex

	mu           sync.Mutex
	state        SessionState
	pending      map[string]bool // 実行中リクエストid
	createdAt    time.Time
	lastActivity time.Time

	inFlight sync.WaitGroup
}

// newSession は新しいサーバー側セッションを作成
func newSession(id string, conn *websocket.Conn, cfg SessionConfig,
	eng *engine.Engine, registry *tool.Registry, resources resource.Provider, info ServerInfo) *Session {
	now := time.Now()
	return &Session{
		id:           id,
		conn:         conn,
		cfg:          cfg,
		engine:       eng,
		registry:     registry,
		resources:    resources,
		info:         info,
		state:        StateConnecting,
		pending:      make(map[string]bool),
		createdAt:    now,
		lastActivity: now,
	}
}

// ID はセッションIDを返す
func (s *Session) ID() string { return s.id }

// State は現在の状態を返す
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition は状態遷移を記録
func (s *Session) transition(to SessionState) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	logger.DebugCF("mcp.session", "state.transition", map[string]interface{}{
		"session_id": s.id,
		"from":       string(from),
		"to":         string(to),
	})
}

// run はセッションのライフサイクル全体を処理する。
// 接続ごとに1ゴルーチンで呼ばれる
func (s *Session) run(ctx context.Context) {
	if !s.handshake() {
		s.teardown(websocket.ClosePolicyViolation)
		return
	}

	s.readLoop(ctx)
}

// handshake はhelloメッセージの交換を行う。
// 接続タイムアウト内に完了しない場合はHandshakeTimeoutErrorでCLOSEDへ
func (s *Session) handshake() bool {
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))

	var req Request
	if err := s.conn.ReadJSON(&req); err != nil {
		kind := tool.KindConnectionLost
		if isTimeout(err) {
			kind = tool.KindHandshakeTimeout
		}
		logger.WarnCF("mcp.session", "handshake.failed", map[string]interface{}{
			"session_id": s.id,
			"kind":       string(kind),
			"error":      err.Error(),
		})
		return false
	}

	if req.Method != MethodHello {
		s.send(errorResponse(req.ID, tool.NewError(tool.KindProtocol,
			"expected %q as the first message, got %q", MethodHello, req.Method)))
		return false
	}

	s.send(newResponse(req.ID, HelloResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      s.info,
	}))
	s.transition(StateHandshaked)
	s.touch()
	return true
}

// readLoop は受信メッセージを到着順に処理する。
// 同一セッション上の複数のtools/callは独立に並行実行され、
// 完了順序は保証されない（相関はidのみ）
func (s *Session) readLoop(ctx context.Context) {
	for {
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))

		var req Request
		if err := s.conn.ReadJSON(&req); err != nil {
			switch {
			case isTimeout(err):
				// アイドルタイムアウト: ACTIVE → CLOSING → CLOSED
				logger.InfoCF("mcp.session", "session.idle_timeout", map[string]interface{}{
					"session_id": s.id,
				})
				s.closeGracefully()
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				// 明示的なクローズ: 実行中リクエストは猶予期間内で完了させる
				s.closeGracefully()
			default:
				// 異常切断: 実行中リクエストはConnectionLostErrorで失敗
				s.failPending(tool.NewError(tool.KindConnectionLost, "connection lost"))
				s.transition(StateClosed)
				s.teardown(websocket.CloseAbnormalClosure)
			}
			return
		}

		s.touch()
		s.dispatch(ctx, req)
	}
}

// dispatch は1リクエストを処理する。
// 無関係なツール呼び出しを直列化しないため、ゴルーチンで実行
func (s *Session) dispatch(ctx context.Context, req Request) {
	if req.ID == "" {
		s.send(errorResponse("", tool.NewError(tool.KindProtocol, "request id is required")))
		return
	}

	s.mu.Lock()
	if s.state == StateHandshaked {
		s.state = StateActive
	}
	if s.pending[req.ID] {
		s.mu.Unlock()
		s.send(errorResponse(req.ID, tool.NewError(tool.KindProtocol,
			"request id %q is already in flight", req.ID)))
		return
	}
	s.pending[req.ID] = true
	s.mu.Unlock()

	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		s.respond(req.ID, s.handle(ctx, req))
	}()
}

// handle はメソッドごとの処理を行う。
// 未知のメソッドはプロトコルエラー（セッションはACTIVEのまま）
func (s *Session) handle(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodHello:
		// ハンドシェイク済みセッションでのhelloは冪等に応答
		return newResponse(req.ID, HelloResult{ProtocolVersion: ProtocolVersion, ServerInfo: s.info})

	case MethodListTools:
		tools := s.registry.List()
		schemas := make([]tool.Schema, 0, len(tools))
		for _, t := range tools {
			schema, err := tool.GenerateSchema(t)
			if err != nil {
				// 登録時に検証済みのため到達しない
				return errorResponse(req.ID, err)
			}
			schemas = append(schemas, schema)
		}
		return newResponse(req.ID, ListToolsResult{Tools: schemas})

	case MethodCallTool:
		var params CallToolParams
		if err := unmarshalParams(req.Params, &params); err != nil {
			return errorResponse(req.ID, err)
		}
		if params.Name == "" {
			return errorResponse(req.ID, tool.NewError(tool.KindProtocol, "tools/call requires a tool name"))
		}
		res := s.engine.Execute(ctx, params.Name, params.Arguments, s.cfg.CallTimeout)
		return newResponse(req.ID, callResultFrom(res))

	case MethodListResources:
		if s.resources == nil {
			return newResponse(req.ID, ListResourcesResult{Resources: []resource.Resource{}})
		}
		list, err := s.resources.List(ctx)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		if list == nil {
			list = []resource.Resource{}
		}
		return newResponse(req.ID, ListResourcesResult{Resources: list})

	case MethodReadResource:
		var params ReadResourceParams
		if err := unmarshalParams(req.Params, &params); err != nil {
			return errorResponse(req.ID, err)
		}
		if s.resources == nil {
			return errorResponse(req.ID, tool.NewError(tool.KindNotFound, "no resource provider configured"))
		}
		content, err := s.resources.Read(ctx, params.URI)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		return newResponse(req.ID, content)

	default:
		return errorResponse(req.ID, tool.NewError(tool.KindProtocol, "unknown method %q", req.Method))
	}
}

// respond は実行中リクエストの応答を送る。
// 既にSessionClosedError等で失敗済みのidには送らない
func (s *Session) respond(id string, resp Response) {
	s.mu.Lock()
	if !s.pending[id] {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.mu.Unlock()

	s.send(resp)
}

// send はレスポンスを直列化して書き込む。
// クローズ済みのコネクションへの書き込みはエラーになるだけで無害
func (s *Session) send(resp Response) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteJSON(resp); err != nil {
		logger.DebugCF("mcp.session", "write.failed", map[string]interface{}{
			"session_id": s.id,
			"error":      err.Error(),
		})
	}
}

// closeGracefully はACTIVE → CLOSING → CLOSEDの正常終了パス。
// 実行中リクエストは猶予期間までドレインし、残りは
// SessionClosedErrorで失敗させる
func (s *Session) closeGracefully() {
	s.transition(StateClosing)

	drained := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(s.cfg.ShutdownGrace):
		s.failPending(tool.NewError(tool.KindSessionClosed, "session closed before request completed"))
	}

	s.transition(StateClosed)
	s.teardown(websocket.CloseNormalClosure)
}

// failPending は残っている実行中リクエストを種別付きエラーで失敗させる
func (s *Session) failPending(cause *tool.Error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.send(errorResponse(id, cause))
	}
}

// teardown はトランスポートを解放する
func (s *Session) teardown(closeCode int) {
	// クローズフレームはベストエフォート
	deadline := time.Now().Add(time.Second)
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, ""), deadline)
	s.conn.Close()

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	logger.InfoCF("mcp.session", "session.closed", map[string]interface{}{
		"session_id": s.id,
		"uptime_ms":  time.Since(s.createdAt).Milliseconds(),
	})
}

// touch は最終アクティビティ時刻を更新
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// unmarshalParams はパラメータを型付き構造体に読む。
// 不正な形式はProtocolError
func unmarshalParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return tool.NewError(tool.KindProtocol, "params are required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return tool.WrapError(tool.KindProtocol, err, "malformed params: %v", err)
	}
	return nil
}

// isTimeout は読み取りデッドライン超過かを判定
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
