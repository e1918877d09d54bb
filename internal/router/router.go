package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"etsy_backoffice/internal/config"
	"etsy_backoffice/internal/controller"
	"etsy_backoffice/internal/middleware"

	_ "etsy_backoffice/docs"
)

// Controllers 所有控制器
type Controllers struct {
	User      *controller.UserController
	Auth      *controller.AuthController
	Shop      *controller.ShopController
	Order     *controller.OrderController
	Dashboard *controller.DashboardController
}

// Options 路由依赖的中间件配置
type Options struct {
	JWT         *middleware.JWTManager
	Session     config.SessionConfig
	SyncLimiter *middleware.CooldownLimiter
	Swagger     bool
	Metrics     config.MetricsConfig
	Gatherer    prometheus.Gatherer
	Log         *zap.Logger
}

// SetupRouter 创建 gin 引擎并注册所有路由
func SetupRouter(ctrls *Controllers, opts Options) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(log), middleware.Recovery(log))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// 1. Swagger 文档路由
	// 访问 http://localhost:8080/swagger/index.html 即可查看
	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// 2. Prometheus
	if opts.Metrics.Enabled && opts.Gatherer != nil {
		path := opts.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	InitRoutes(r, ctrls, opts)
	return r
}

// InitRoutes 注册业务路由
func InitRoutes(r *gin.Engine, ctrls *Controllers, opts Options) {
	jwtAuth := middleware.JWTAuth(opts.JWT)
	audit := middleware.AuditContext()

	api := r.Group("/api")
	{
		// auth 后台账号
		auth := api.Group("/auth")
		{
			auth.POST("/register", ctrls.User.Register)
			auth.POST("/login", ctrls.User.Login)
			auth.POST("/refresh", ctrls.User.RefreshToken)
			auth.GET("/profile", jwtAuth, audit, ctrls.User.GetProfile)
		}

		// etsy 店铺授权，依赖浏览器会话保存 state / verifier
		etsy := api.Group("/etsy", middleware.SessionCookie(opts.Session))
		{
			// POST /api/etsy/connect
			etsy.POST("/connect", jwtAuth, audit, ctrls.Auth.Connect)
			etsy.GET("/status", ctrls.Auth.Status)

			// GET /api/etsy/callback
			// Etsy 跳转回来时没有 Authorization 头，归属用户取自会话
			etsy.GET("/callback", ctrls.Auth.Callback)
		}

		authed := api.Group("", jwtAuth, audit)

		// shop 店铺管理
		shops := authed.Group("/shops")
		{
			shops.GET("", ctrls.Shop.GetShopList)
			shops.GET("/:id", ctrls.Shop.GetShopDetail)
			shops.DELETE("/:id", ctrls.Shop.Disconnect)
			shops.PATCH("/:id/settings", ctrls.Shop.UpdateSettings)
			shops.POST("/:id/refresh", ctrls.Shop.RefreshToken)
			shops.GET("/:id/products", ctrls.Shop.ListProducts)
			shops.GET("/:id/orders", ctrls.Order.ListByShop)

			syncLimit := []gin.HandlerFunc{}
			if opts.SyncLimiter != nil {
				syncLimit = append(syncLimit, middleware.SyncRateLimit(opts.SyncLimiter))
			}
			shops.POST("/:id/sync", append(syncLimit, ctrls.Shop.Sync)...)
		}

		// order 订单
		orders := authed.Group("/orders")
		{
			orders.GET("/:id", ctrls.Order.GetDetail)
			orders.PATCH("/:id/status", ctrls.Order.UpdateStatus)
		}

		authed.GET("/dashboard", ctrls.Dashboard.Overview)
	}
}
