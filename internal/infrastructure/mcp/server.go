package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/genbi-core/genbi-mcp/internal/application/engine"
	"github.com/genbi-core/genbi-mcp/internal/domain/resource"
	"github.com/genbi-core/genbi-mcp/internal/domain/tool"
	"github.com/genbi-core/genbi-mcp/pkg/health"
	"github.com/genbi-core/genbi-mcp/pkg/logger"
)

// ServerConfig はMCPサーバーの設定
type ServerConfig struct {
	Host             string
	Port             int
	Name             string
	Version          string
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
	ShutdownGrace    time.Duration
	CallTimeout      time.Duration
}

// Server は1つのツールレジストリを複数の並行セッションに公開する。
// セッション同士は隔離され、1セッションの失敗は他に波及しない
type Server struct {
	cfg       ServerConfig
	registry  *tool.Registry
	engine    *engine.Engine
	resources resource.Provider
	upgrader  websocket.Upgrader
	router    *chi.Mux
	health    *health.Registry

	mu       sync.Mutex
	sessions map[string]*Session

	httpServer *http.Server
}

// NewServer は新しいMCPサーバーを作成
func NewServer(cfg ServerConfig, registry *tool.Registry, eng *engine.Engine, resources resource.Provider) *Server {
	s := &Server{
		cfg:       cfg,
		registry:  registry,
		engine:    eng,
		resources: resources,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*Session),
		health:   health.NewRegistry(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/mcp", s.handleWebSocket)

	s.router = r
	return s
}

// Router はルートHTTPハンドラを返す（テスト用）
func (s *Server) Router() http.Handler { return s.router }

// AddHealthCheck は/healthzで実行されるチェックを追加する
func (s *Server) AddHealthCheck(name string, fn health.CheckFunc) {
	s.health.Add(name, fn)
}

// Start はHTTPサーバーを起動してリッスンする
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	logger.InfoCF("mcp.server", "server.starting", map[string]interface{}{
		"addr":  addr,
		"tools": s.registry.Statistics().Total,
	})
	return s.httpServer.ListenAndServe()
}

// Shutdown は全セッションを閉じてサーバーを停止する
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.closeGracefully()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// SessionCount は接続中のセッション数を返す
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// handleHealth はヘルスチェックに応答。
// 登録済みチェックのいずれかが失敗すると503
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy, checks := s.health.Run()
	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	stats := s.registry.Statistics()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   status,
		"tools":    stats.Total,
		"sessions": s.SessionCount(),
		"checks":   checks,
	})
}

// handleWebSocket は接続を受け付けてセッションを作成する。
// セッションごとに独立したゴルーチンで動く
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("mcp.server", "upgrade.failed", map[string]interface{}{
			"remote": r.RemoteAddr,
			"error":  err.Error(),
		})
		return
	}

	sess := newSession(uuid.New().String(), conn, SessionConfig{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
		IdleTimeout:      s.cfg.IdleTimeout,
		ShutdownGrace:    s.cfg.ShutdownGrace,
		CallTimeout:      s.cfg.CallTimeout,
	}, s.engine, s.registry, s.resources, ServerInfo{Name: s.cfg.Name, Version: s.cfg.Version})

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	logger.InfoCF("mcp.server", "session.opened", map[string]interface{}{
		"session_id": sess.ID(),
		"remote":     r.RemoteAddr,
	})

	// ハンドラのゴルーチンがそのままセッションのゴルーチンになる
	sess.run(context.Background())

	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()
}
