package task

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"etsy_backoffice/internal/config"
	"etsy_backoffice/internal/repository"
	"etsy_backoffice/internal/service"
)

// ==================== TaskManager 后台任务管理器 ====================

// TaskManager 统一管理 token 保活与自动同步
type TaskManager struct {
	tokenTask *TokenTask
	syncTask  *SyncTask
	sync      *service.SyncService
	log       *zap.Logger
}

// TaskManagerDeps 任务管理器依赖
type TaskManagerDeps struct {
	Shops  repository.ShopRepository
	Tokens *service.TokenService
	Sync   *service.SyncService
	Log    *zap.Logger
}

// NewTaskManager 创建任务管理器
// cfg.Enabled 为 false 时只关闭自动同步，token 保活始终开启
func NewTaskManager(deps *TaskManagerDeps, cfg config.SyncConfig) *TaskManager {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	tm := &TaskManager{sync: deps.Sync, log: log}

	if deps.Tokens != nil {
		tm.tokenTask = NewTokenTask(deps.Shops, deps.Tokens, cfg.TokenSchedule, cfg.Concurrency, log.Named("token_task"))
	}

	if cfg.Enabled && deps.Sync != nil {
		tm.syncTask = NewSyncTask(deps.Shops, deps.Sync, cfg.Schedule, cfg.Concurrency, cfg.RunTimeout, log.Named("sync_task"))
	}

	return tm
}

// ==================== 生命周期管理 ====================

// Start 启动所有任务
func (tm *TaskManager) Start() error {
	if tm.tokenTask != nil {
		if err := tm.tokenTask.Start(); err != nil {
			return err
		}
	}
	if tm.syncTask != nil {
		if err := tm.syncTask.Start(); err != nil {
			tm.Stop()
			return err
		}
	}
	tm.log.Info("background tasks started", zap.Any("status", tm.Status()))
	return nil
}

// Stop 停止所有任务
func (tm *TaskManager) Stop() {
	if tm.syncTask != nil {
		tm.syncTask.Stop()
	}
	if tm.tokenTask != nil {
		tm.tokenTask.Stop()
	}
}

// ==================== 手动触发接口 ====================

// TriggerShopSync 立即同步一个店铺 (不受自动同步开关影响)
func (tm *TaskManager) TriggerShopSync(ctx context.Context, shopID int64) (*service.SyncReport, error) {
	if tm.sync == nil {
		return nil, ErrTaskDisabled
	}
	return tm.sync.SyncShop(ctx, shopID)
}

// TriggerSyncRound 立即执行一轮自动同步
func (tm *TaskManager) TriggerSyncRound(ctx context.Context) (SyncRunResult, error) {
	if tm.syncTask == nil {
		return SyncRunResult{}, ErrTaskDisabled
	}
	return tm.syncTask.RunOnce(ctx), nil
}

// TriggerTokenRound 立即执行一轮 token 保活
func (tm *TaskManager) TriggerTokenRound(ctx context.Context) (RunResult, error) {
	if tm.tokenTask == nil {
		return RunResult{}, ErrTaskDisabled
	}
	return tm.tokenTask.RunOnce(ctx), nil
}

// ==================== 状态查询 ====================

// Status 获取任务状态
func (tm *TaskManager) Status() map[string]bool {
	return map[string]bool{
		"token_keepalive": tm.tokenTask != nil,
		"auto_sync":       tm.syncTask != nil,
	}
}

// ==================== cron ====================

// newCron 秒级调度；上一轮未结束时跳过本轮，job panic 不会拖垮进程
func newCron(log *zap.Logger) *cron.Cron {
	l := cronLogger{log.Sugar()}
	return cron.New(
		cron.WithSeconds(),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
}

// cronLogger 把 cron 的日志接到 zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
