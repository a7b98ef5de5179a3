package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wfunc/rpsarena/auth"
	"github.com/wfunc/rpsarena/config"
	"github.com/wfunc/rpsarena/events"
	"github.com/wfunc/rpsarena/lobby"
	"github.com/wfunc/rpsarena/logger"
	"github.com/wfunc/rpsarena/monitor"
	"github.com/wfunc/rpsarena/network"
	"github.com/wfunc/rpsarena/persistence"
	"github.com/wfunc/rpsarena/services"
	"github.com/wfunc/rpsarena/session"
	"github.com/wfunc/rpsarena/timer"

	rpsrpc "github.com/wfunc/rpsarena/rpc"
)

const (
	heartbeatInterval = 30 * time.Second
	statsInterval     = 15 * time.Second
	idleAfter         = 5 * time.Minute
)

type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	resolver       auth.Resolver
	sessionManager *session.Manager
	orchestrator   *lobby.Orchestrator
	leaderboard    *services.LeaderboardService
	recorder       *services.Recorder
	monitor        *monitor.Monitor
	db             persistence.Database
	timers         *timer.TimerManager

	httpServer   *http.Server
	rpcServer    *rpsrpc.Server
	healthServer *rpsrpc.HealthServer

	connections  sync.WaitGroup
	shutdownOnce sync.Once
}

// NewGameServer wires every component; nothing listens until Start.
func NewGameServer(cfg *config.Config, db persistence.Database, publisher events.Publisher) *GameServer {
	mon := monitor.NewMonitor(cfg.Metrics.Namespace)
	sessions := session.NewManager()
	recorder := services.NewRecorder(db, publisher, mon)

	s := &GameServer{
		cfg:            cfg,
		resolver:       auth.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		sessionManager: sessions,
		orchestrator:   lobby.NewOrchestrator(sessions, recorder, mon),
		leaderboard:    services.NewLeaderboardService(db),
		recorder:       recorder,
		monitor:        mon,
		db:             db,
		timers:         timer.NewTimerManager(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
	}
	return s
}

// originChecker allows requests without an Origin header (non-browser
// clients) and, when the list is empty, every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(set) == 0 {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		logger.Log.Warnf("websocket origin blocked: %s", origin)
		return false
	}
}

// Handler returns the HTTP routes.
func (s *GameServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(recoveryMiddleware)

	r.HandleFunc("/ws", s.handleWebSocket)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(loggingMiddleware)
	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/rounds", s.handleRounds).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.Handle("/metrics", s.monitor.Handler())
	r.Handle("/debug/vars", s.monitor.ExpvarHandler())
	return r
}

// Start opens the RPC, health and HTTP listeners. It blocks until the HTTP
// server stops; after Shutdown it returns nil.
func (s *GameServer) Start() error {
	rpcServer, err := rpsrpc.NewServer(s.cfg.Server.RPCAddress)
	if err != nil {
		return err
	}
	if err := rpcServer.Register(rpsrpc.LeaderboardName, rpsrpc.NewLeaderboardService(s.leaderboard)); err != nil {
		rpcServer.Stop()
		return err
	}
	s.rpcServer = rpcServer
	go rpcServer.Start()

	healthServer, err := rpsrpc.NewHealthServer(s.cfg.Server.HealthAddress)
	if err != nil {
		rpcServer.Stop()
		return err
	}
	s.healthServer = healthServer
	go healthServer.Start()

	s.timers.Every(statsInterval, s.sampleStats)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.HTTPAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// sampleStats refreshes gauges that are only updated on change.
func (s *GameServer) sampleStats() {
	online := s.orchestrator.Presence().OnlineCount()
	rooms := s.orchestrator.Rooms().Count()
	queued := s.orchestrator.Queue().Len()

	s.monitor.SetOnlinePlayers(online)
	s.monitor.SetActiveRooms(rooms)
	s.monitor.SetQueueLength(queued)
	logger.Log.Debugw("stats",
		"connections", s.sessionManager.Count(),
		"idle", s.sessionManager.CountIdle(idleAfter),
		"online", online,
		"rooms", rooms,
		"queued", queued,
	)
}

// Shutdown stops accepting, closes live connections, drains pending
// leaderboard writes and closes the store.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var errs []error
	s.shutdownOnce.Do(func() {
		if s.healthServer != nil {
			s.healthServer.SetNotServing()
		}
		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if s.rpcServer != nil {
			s.rpcServer.Stop()
		}
		s.timers.Stop()

		// hijacked websocket connections are not tracked by http.Server
		s.sessionManager.CloseAll()
		waitGroup(ctx, &s.connections)
		s.orchestrator.Shutdown()

		if err := s.recorder.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
		if s.healthServer != nil {
			s.healthServer.Stop()
		}
		logger.Log.Info("Game server stopped")
	})
	return errors.Join(errs...)
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := s.resolver.Verify(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		logger.Log.Infow("websocket rejected", "remote", r.RemoteAddr, "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthenticated"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}

	s.connections.Add(1)
	defer s.connections.Done()
	s.handleConnection(conn, identity)
}

func (s *GameServer) handleConnection(conn *websocket.Conn, identity auth.Identity) {
	wsConn := network.NewWSConnection(conn, s.cfg.Server.SendBuffer)
	wsConn.SetHeartbeat(heartbeatInterval)
	sess := session.NewSession(uuid.NewString(), wsConn, identity)

	if err := s.orchestrator.Connect(sess); err != nil {
		logger.Log.Errorf("connect session %s: %v", sess.ID, err)
		wsConn.Close()
		return
	}
	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		s.orchestrator.Disconnect(sess)
		wsConn.Close()
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
	}()

	for {
		packet, err := wsConn.ReadPacket()
		if err != nil {
			if errors.Is(err, network.ErrInvalidPacket) {
				continue
			}
			return
		}
		s.orchestrator.Dispatch(sess, packet)
	}
}

// queryLimit reads ?limit=; absent means 0 (service default).
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "limit must be a positive integer"})
		return 0, false
	}
	return n, true
}

func (s *GameServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	entries, err := s.leaderboard.Top(r.Context(), limit)
	if err != nil {
		logger.Log.Errorf("leaderboard query: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server error"})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *GameServer) handleRounds(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	records, err := s.leaderboard.Recent(r.Context(), limit)
	if err != nil {
		logger.Log.Errorf("rounds query: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server error"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *GameServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
