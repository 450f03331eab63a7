package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/emberday/internal/backup"
	"github.com/dukerupert/emberday/internal/handler"
	"github.com/dukerupert/emberday/internal/middleware"
	"github.com/dukerupert/emberday/internal/push"
	"github.com/dukerupert/emberday/internal/store"
	ws "github.com/dukerupert/emberday/internal/websocket"
)

// Config carries the server's feature configuration.
type Config struct {
	// Location is the timezone used for day boundaries.
	Location *time.Location
	// PenalizeBadHabits flips the ledger sign for bad-habit completions.
	PenalizeBadHabits bool

	VAPIDPublicKey  string
	VAPIDPrivateKey string

	Backup backup.Config
}

type Server struct {
	db  *sql.DB
	hub *ws.Hub

	authH   *handler.AuthHandler
	habitH  *handler.HabitHandler
	rewardH *handler.RewardHandler
	streakH *handler.StreakHandler
	statsH  *handler.StatsHandler
	pushH   *handler.PushHandler
	backupH *handler.BackupHandler

	sessionStore  *store.SessionStore
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	pushScheduler *push.Scheduler
	logger        *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	habitStore := store.NewHabitStore(db)
	ledgerStore := store.NewLedgerStore(db)
	streakStore := store.NewStreakStore(db)
	rewardStore := store.NewRewardStore(db)
	statsStore := store.NewStatsStore(db)
	pushStore := store.NewPushStore(db)

	progress := store.NewProgressStore(db)
	progress.PenalizeBadHabits = cfg.PenalizeBadHabits

	var pushSvc *push.Service
	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
		pushSched = push.NewScheduler(pushSvc, pushStore, streakStore, habitStore, logger, loc)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger)
	}

	backupMgr := backup.NewManager(cfg.Backup, db, logger)

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(userStore, sessionStore, logger),
		habitH:        handler.NewHabitHandler(habitStore, progress, hub, logger, loc),
		rewardH:       handler.NewRewardHandler(rewardStore, progress, hub, logger),
		streakH:       handler.NewStreakHandler(streakStore, progress, hub, logger, loc),
		statsH:        handler.NewStatsHandler(ledgerStore, statsStore, logger, loc),
		pushH:         pushH,
		backupH:       handler.NewBackupHandler(backupMgr, logger),
		sessionStore:  sessionStore,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		pushScheduler: pushSched,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the reminder scheduler, or nil when push is not
// configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Habit routes
	mux.HandleFunc("POST /api/habits", s.habitH.Create)
	mux.HandleFunc("GET /api/habits", s.habitH.List)
	mux.HandleFunc("GET /api/habits/today", s.habitH.Today)
	mux.HandleFunc("PUT /api/habits/{id}", s.habitH.Update)
	mux.HandleFunc("DELETE /api/habits/{id}", s.habitH.Delete)
	mux.HandleFunc("POST /api/habits/{id}/complete", s.habitH.Complete)
	mux.HandleFunc("DELETE /api/habits/{id}/complete", s.habitH.Cancel)

	// XP ledger and stats
	mux.HandleFunc("GET /api/xp", s.statsH.Balance)
	mux.HandleFunc("GET /api/xp/events", s.statsH.Events)
	mux.HandleFunc("GET /api/stats/weekly", s.statsH.Weekly)
	mux.HandleFunc("GET /api/stats/categories", s.statsH.Categories)
	mux.HandleFunc("GET /api/stats/hourly", s.statsH.Hourly)

	// Streak routes
	mux.HandleFunc("GET /api/streak", s.streakH.Get)
	mux.HandleFunc("POST /api/streak/freeze", s.streakH.Freeze)

	// Reward shop routes
	mux.HandleFunc("POST /api/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("GET /api/rewards/owned", s.rewardH.Owned)
	mux.HandleFunc("PUT /api/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("POST /api/rewards/{id}/purchase", s.rewardH.Purchase)

	// Push notification routes
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
	}

	// Backup routes
	mux.HandleFunc("GET /api/backup/status", s.backupH.Status)
	mux.HandleFunc("POST /api/backup/run", s.backupH.Run)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
