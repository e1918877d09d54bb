package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"etsy_backoffice/internal/config"
	"etsy_backoffice/internal/controller"
	"etsy_backoffice/internal/metrics"
	"etsy_backoffice/internal/middleware"
	"etsy_backoffice/internal/model"
	"etsy_backoffice/internal/repository"
	"etsy_backoffice/internal/router"
	"etsy_backoffice/internal/service"
	"etsy_backoffice/internal/session"
	"etsy_backoffice/internal/task"
	"etsy_backoffice/pkg/database"
	"etsy_backoffice/pkg/etsy"
	"etsy_backoffice/pkg/logger"
	"etsy_backoffice/pkg/security"
)

// ==================== 依赖容器 ====================

// App 依赖容器
type App struct {
	Cfg      *config.Config
	DB       *gorm.DB
	Repos    *repository.Repositories
	Registry *prometheus.Registry
	Sessions session.Store
	Services *Services
	Tasks    *task.TaskManager
	Log      *zap.Logger
}

// Services 服务集合
type Services struct {
	User      *service.UserService
	Auth      *service.AuthService
	Token     *service.TokenService
	Sync      *service.SyncService
	Shop      *service.ShopService
	Order     *service.OrderService
	Dashboard *service.DashboardService
	JWT       *middleware.JWTManager
}

// newApp 初始化数据库、Etsy 客户端与全部服务
// withSessions 为 false 时不连接会话存储 (CLI 子命令用不到)
func newApp(ctx context.Context, cfg *config.Config, withSessions bool) (*App, error) {
	log := logger.L()

	// 1. Token 落库加密
	if err := initSealer(cfg.Security); err != nil {
		return nil, err
	}

	// 2. 数据库
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, model.All()...); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	app := &App{
		Cfg:      cfg,
		DB:       db,
		Repos:    repository.New(db),
		Registry: prometheus.NewRegistry(),
		Log:      log,
	}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// 3. 会话
	if withSessions {
		app.Sessions, err = session.New(cfg.Session)
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
	}

	// 4. 服务
	m := metrics.New(app.Registry)
	client := etsy.NewClient(cfg.Etsy, log.Named("etsy"))
	jwt := middleware.NewJWTManager(cfg.JWT)

	svc := &Services{JWT: jwt}
	svc.User = service.NewUserService(app.Repos.Users, jwt)
	svc.Token = service.NewTokenService(app.Repos.Shops, client, m, log.Named("token"))
	svc.Sync = service.NewSyncService(app.Repos, svc.Token, client, cfg.Sync, m, log.Named("sync"))
	svc.Shop = service.NewShopService(app.Repos, svc.Sync)
	svc.Order = service.NewOrderService(app.Repos, log.Named("order"))
	svc.Dashboard = service.NewDashboardService(app.Repos.Dashboard)
	if app.Sessions != nil {
		svc.Auth = service.NewAuthService(app.Sessions, app.Repos.Shops, client, cfg.Etsy.Scopes, m, log.Named("oauth"))
	}
	app.Services = svc

	// 5. 后台任务 (由 serve 决定是否启动)
	app.Tasks = task.NewTaskManager(&task.TaskManagerDeps{
		Shops:  app.Repos.Shops,
		Tokens: svc.Token,
		Sync:   svc.Sync,
		Log:    log.Named("task"),
	}, cfg.Sync)

	return app, nil
}

func initSealer(cfg config.SecurityConfig) error {
	if cfg.TokenEncKey == "" {
		logger.L().Warn("security.token_enc_key is empty, tokens are stored in plaintext")
		return nil
	}
	key, err := security.LoadKeyFromBase64(cfg.TokenEncKey)
	if err != nil {
		return fmt.Errorf("load token key: %w", err)
	}
	sealer, err := security.NewSealer(key)
	if err != nil {
		return err
	}
	security.SetSealer(sealer)
	return nil
}

// routerControllers 初始化所有控制器
func (a *App) routerControllers() *router.Controllers {
	svc := a.Services
	return &router.Controllers{
		User:      controller.NewUserController(svc.User, a.Log.Named("user_ctl")),
		Auth:      controller.NewAuthController(svc.Auth, a.Log.Named("auth_ctl")),
		Shop:      controller.NewShopController(svc.Shop, svc.Token, svc.Sync, a.Log.Named("shop_ctl")),
		Order:     controller.NewOrderController(svc.Order, a.Log.Named("order_ctl")),
		Dashboard: controller.NewDashboardController(svc.Dashboard, a.Log.Named("dashboard_ctl")),
	}
}

// Close 释放资源
func (a *App) Close() {
	if closer, ok := a.Sessions.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if err := database.Close(a.DB); err != nil {
		a.Log.Warn("close database failed", zap.Error(err))
	}
}
