package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"etsy_backoffice/internal/config"
	"etsy_backoffice/pkg/logger"
)

var (
	// 全局参数
	configPath string
	logLevel   string
)

// rootCmd 后台服务入口
var rootCmd = &cobra.Command{
	Use:   "backoffice",
	Short: "Etsy 店铺后台：店铺授权、商品与订单同步",
	Long: `Etsy back-office service.

Commands:
  serve     启动 HTTP 服务与后台任务
  migrate   执行数据库迁移
  sync      立即同步一个店铺
  refresh   立即刷新一个店铺的 Token`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径 (yaml)，为空时只读取环境变量")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "覆盖 logging.level")
}

// loadConfig 加载配置并初始化全局 Logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, err
	}
	logger.L().Debug("config loaded", zap.String("env", cfg.Env), zap.String("db_driver", cfg.Database.Driver))
	return cfg, nil
}
