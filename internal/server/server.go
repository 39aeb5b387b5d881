package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"colabtrack/internal/auth"
	"colabtrack/internal/config"
	"colabtrack/internal/database"
	"colabtrack/internal/handler"
	"colabtrack/internal/middleware"
	"colabtrack/internal/model"
	"colabtrack/internal/repository"
	"colabtrack/internal/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	Engine *gin.Engine
	DB     *database.DB
	Config *config.Config
	log    *slog.Logger
}

func Init(cfg *config.Config, log *slog.Logger) (*Server, error) {
	db, err := database.Open(cfg.DSN(), cfg.DBSlowQuery, log)
	if err != nil {
		return nil, err
	}
	log.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	if cfg.MigrateOnStart {
		if err := database.Migrate(cfg.MigrateURL(), log); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := handler.RegisterValidators(); err != nil {
		db.Close()
		return nil, fmt.Errorf("register validators: %w", err)
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.Timeout(cfg.RequestTimeout))

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.Gorm)
	projectRepo := repository.NewProjectRepository(db.Gorm)
	memberRepo := repository.NewProjectMemberRepository(db.Gorm)
	taskRepo := repository.NewTaskRepository(db.Gorm)
	commentRepo := repository.NewCommentRepository(db.Gorm)
	attachmentRepo := repository.NewAttachmentRepository(db.Gorm)

	// Initialize services
	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret:       []byte(cfg.JWTSecret),
		Issuer:       cfg.JWTIssuer,
		TTL:          cfg.JWTTTL,
		ClockSkew:    cfg.JWTClockSkew,
		RefreshGrace: cfg.JWTRefreshGrace,
	})
	authService := service.NewAuthService(userRepo, tokens, cfg.BcryptCost, log)
	graph := service.NewTaskGraph(taskRepo, service.GraphConfig{
		AllowCrossProjectDependencies: cfg.AllowCrossProjectDependencies,
	}, log)
	attachments := service.NewAttachments(attachmentRepo, log)

	// Initialize handlers
	userHandler := handler.NewUserHandler(authService, log)
	projectHandler := handler.NewProjectHandler(projectRepo, memberRepo, graph, log)
	memberHandler := handler.NewProjectMemberHandler(projectRepo, memberRepo, userRepo, log)
	taskHandler := handler.NewTaskHandler(graph, projectRepo, memberRepo, log)
	commentHandler := handler.NewCommentHandler(commentRepo, graph, projectRepo, memberRepo, log)
	attachmentHandler := handler.NewAttachmentHandler(attachments, graph, projectRepo, memberRepo, log)
	healthHandler := handler.NewHealthHandler(db, cfg.RequestTimeout, log)

	// Public routes
	r.GET("/health", healthHandler.Check)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	public := r.Group("/api/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.Refresh)
		public.POST("/logout", userHandler.Logout)
	}

	// Protected routes - require authentication
	api := r.Group("/api")
	api.Use(middleware.JWTAuthMiddleware(tokens, userRepo))
	{
		// User routes
		api.GET("/users/me", userHandler.Me)
		api.PUT("/users/me", userHandler.UpdateMe)

		admin := api.Group("/users")
		admin.Use(middleware.RequireRole(model.RoleAdmin))
		admin.PUT("/:id/role", userHandler.SetRole)
		admin.PUT("/:id/enabled", userHandler.SetEnabled)

		// Project routes
		api.POST("/projects", projectHandler.Create)
		api.GET("/projects", projectHandler.GetAll)
		api.GET("/projects/:id", projectHandler.GetByID)
		api.PUT("/projects/:id", projectHandler.Update)
		api.DELETE("/projects/:id", projectHandler.Delete)

		// Project member routes
		api.POST("/projects/:id/members", memberHandler.AddMember)
		api.GET("/projects/:id/members", memberHandler.GetMembers)
		api.DELETE("/projects/:id/members/:user_id", memberHandler.RemoveMember)

		// Task routes
		api.POST("/tasks", taskHandler.Create)
		api.GET("/tasks/my", taskHandler.GetMine)
		api.GET("/projects/:id/tasks", taskHandler.GetByProject)
		api.GET("/tasks/:id", taskHandler.GetByID)
		api.PUT("/tasks/:id", taskHandler.Update)
		api.DELETE("/tasks/:id", taskHandler.Delete)
		api.PUT("/tasks/:id/status", taskHandler.ChangeStatus)
		api.PUT("/tasks/:id/parent", taskHandler.SetParent)
		api.POST("/tasks/:id/time", taskHandler.LogTime)
		api.GET("/tasks/:id/dependencies", taskHandler.GetDependencies)
		api.POST("/tasks/:id/dependencies/:dependency_id", taskHandler.AddDependency)
		api.DELETE("/tasks/:id/dependencies/:dependency_id", taskHandler.RemoveDependency)

		// Comment routes
		api.POST("/tasks/:id/comments", commentHandler.Create)
		api.GET("/tasks/:id/comments", commentHandler.GetByTask)
		api.DELETE("/comments/:id", commentHandler.Delete)

		// Attachment routes
		api.POST("/tasks/:id/attachments", attachmentHandler.Upload)
		api.GET("/tasks/:id/attachments", attachmentHandler.GetByTask)
		api.GET("/attachments/:id/versions", attachmentHandler.GetVersions)
		api.DELETE("/attachments/:id", attachmentHandler.Delete)
	}

	return &Server{
		Engine: r,
		DB:     db,
		Config: cfg,
		log:    log,
	}, nil
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server running", "port", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		s.DB.Close()
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	if err := s.DB.Close(); err != nil {
		s.log.Warn("closing database", "error", err)
	}

	s.log.Info("server exited properly")
	return nil
}
