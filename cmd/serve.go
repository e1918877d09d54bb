package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"etsy_backoffice/internal/middleware"
	"etsy_backoffice/internal/router"
	"etsy_backoffice/internal/session"
	"etsy_backoffice/pkg/logger"
)

var noTasks bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务与后台定时任务",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}

		app, err := newApp(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer app.Close()

		r := router.SetupRouter(app.routerControllers(), router.Options{
			JWT:         app.Services.JWT,
			Session:     cfg.Session,
			SyncLimiter: middleware.NewCooldownLimiter(cfg.Sync.ManualSyncCooldown),
			Swagger:     cfg.Server.Swagger,
			Metrics:     cfg.Metrics,
			Gatherer:    app.Registry,
			Log:         app.Log.Named("http"),
		})

		if !noTasks {
			if err := app.Tasks.Start(); err != nil {
				return err
			}
			defer app.Tasks.Stop()
		}

		stopSweep := sweepSessions(app.Sessions, cfg.Session.TTL, app.Log)
		defer stopSweep()

		return startServer(r, app)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&noTasks, "no-tasks", false, "不启动 Token 保活与自动同步任务")
	rootCmd.AddCommand(serveCmd)
}

// startServer 启动服务并在收到信号后优雅关闭
func startServer(r *gin.Engine, app *App) error {
	cfg := app.Cfg.Server
	log := app.Log

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// 异步启动服务
	errCh := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("正在关闭服务...", zap.String("signal", sig.String()))
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("服务强制关闭", zap.Error(err))
		return err
	}

	log.Info("服务已退出")
	return nil
}

// sweepSessions 内存会话需要定期清理过期条目
func sweepSessions(store session.Store, ttl time.Duration, log *zap.Logger) func() {
	mem, ok := store.(*session.MemoryStore)
	if !ok {
		return func() {}
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	ticker := time.NewTicker(ttl)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := mem.Sweep(); n > 0 {
					log.Debug("expired sessions removed", zap.Int("count", n))
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
