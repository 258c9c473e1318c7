package server

import (
	"log/slog"
	"time"

	"backend-runstr/internal/auth"
	"backend-runstr/internal/completion"
	"backend-runstr/internal/config"
	"backend-runstr/internal/db"
	"backend-runstr/internal/logging"
	"backend-runstr/internal/reward"
	"backend-runstr/internal/social"
	"backend-runstr/internal/streak"
	"backend-runstr/internal/stream"
	"backend-runstr/internal/tracking"
	"backend-runstr/internal/wallet"
	"backend-runstr/internal/workout"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

const mintTimeout = 10 * time.Second

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       db.Querier
	Redis    *redis.Client
	Stream   *stream.Hub
	Sessions *tracking.Service
	Rewards  *reward.Engine
	Payouts  *wallet.Service
	Logger   *slog.Logger
}

// NewServer wires every service onto one Fiber app. A nil q is allowed for
// routes that never touch Postgres.
func NewServer(cfg config.Config, q db.Querier, redisClient *redis.Client, log *slog.Logger) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	log = logging.OrDiscard(log)
	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     q,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log),
		Logger: log,
	}

	var minter wallet.Minter
	if cfg.MintURL != "" {
		minter = wallet.NewClient(cfg.MintURL, mintTimeout)
	}

	workouts := workout.NewStore(q)
	feed := social.NewService(q)
	s.Rewards = reward.NewEngine(reward.NewCalculator(cfg.Reward), streak.NewStore(q), log)
	s.Payouts = wallet.NewService(wallet.NewLedger(q), minter, log)
	pipeline := completion.NewPipeline(workouts, s.Rewards, s.Payouts, feed, completion.PolicyFromConfig(cfg.Reward), log)
	s.Sessions = tracking.NewService(workout.NewRegistry(workout.SystemClock{}, log), workouts, s.Stream, pipeline, cfg.Location(), log)

	registerRoutes(s, feed)
	return s
}

func registerRoutes(s *Server, feed *social.Service) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB, s.Redis))
	tracking.RegisterRoutes(s.App.Group("/workouts"), s.Sessions, jwtMiddleware)
	reward.RegisterRoutes(s.App.Group("/rewards"), s.Rewards, jwtMiddleware)
	social.RegisterRoutes(s.App.Group("/social"), feed, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, s.Sessions.Snapshot)
}
