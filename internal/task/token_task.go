package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"etsy_backoffice/internal/repository"
	"etsy_backoffice/internal/service"
)

// ==================== TokenTask Token 保活 ====================

// DefaultTokenWindow 提前多久刷新即将过期的 token
// 需大于两次调度的间隔，否则两轮之间可能有 token 过期
const DefaultTokenWindow = 45 * time.Minute

// TokenTask 定时刷新即将过期的店铺 token
type TokenTask struct {
	shops  repository.ShopRepository
	tokens *service.TokenService
	cron   *cron.Cron

	schedule    string
	window      time.Duration
	concurrency int
	timeout     time.Duration

	now     func() time.Time
	log     *zap.Logger
	initial sync.WaitGroup
}

// RunResult 一轮保活的统计
type RunResult struct {
	Checked   int
	Refreshed int
	Failed    int
}

func NewTokenTask(shops repository.ShopRepository, tokens *service.TokenService, schedule string, concurrency int, log *zap.Logger) *TokenTask {
	if log == nil {
		log = zap.NewNop()
	}
	if schedule == "" {
		schedule = "0 0/40 * * * *"
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &TokenTask{
		shops:       shops,
		tokens:      tokens,
		cron:        newCron(log),
		schedule:    schedule,
		window:      DefaultTokenWindow,
		concurrency: concurrency,
		timeout:     5 * time.Minute,
		now:         time.Now,
		log:         log,
	}
}

// Start 启动定时任务，并立即执行一次
func (t *TokenTask) Start() error {
	if _, err := t.cron.AddFunc(t.schedule, t.tick); err != nil {
		return err
	}

	t.initial.Add(1)
	go func() {
		defer t.initial.Done()
		t.tick()
	}()

	t.cron.Start()
	t.log.Info("token keep-alive started", zap.String("schedule", t.schedule), zap.Duration("window", t.window))
	return nil
}

// Stop 停止调度并等待正在执行的一轮结束
func (t *TokenTask) Stop() {
	<-t.cron.Stop().Done()
	t.initial.Wait()
	t.log.Info("token keep-alive stopped")
}

func (t *TokenTask) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	t.RunOnce(ctx)
}

// RunOnce 刷新所有在 window 内过期的 token
// 单个店铺失败只记日志，不影响其他店铺
func (t *TokenTask) RunOnce(ctx context.Context) RunResult {
	shops, err := t.shops.ListExpiring(ctx, t.now().Add(t.window))
	if err != nil {
		t.log.Error("list expiring shops failed", zap.Error(err))
		return RunResult{}
	}
	if len(shops) == 0 {
		return RunResult{}
	}

	t.log.Info("refreshing expiring tokens", zap.Int("shops", len(shops)), zap.Int("concurrency", t.concurrency))

	var refreshed, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	for i := range shops {
		shop := shops[i]
		if gctx.Err() != nil {
			t.log.Warn("token keep-alive interrupted", zap.Error(gctx.Err()))
			break
		}
		g.Go(func() error {
			ok, err := t.tokens.RefreshIfExpiring(gctx, shop.ID, t.window)
			switch {
			case err != nil:
				atomic.AddInt64(&failed, 1)
				t.log.Warn("token refresh failed",
					zap.Int64("shop_id", shop.ID),
					zap.String("shop_name", shop.ShopName),
					zap.Bool("needs_reauth", service.IsRefreshRejected(err)),
					zap.Error(err))
			case ok:
				atomic.AddInt64(&refreshed, 1)
			}
			// 单店失败不取消其他店铺
			return nil
		})
	}
	_ = g.Wait()

	res := RunResult{Checked: len(shops), Refreshed: int(refreshed), Failed: int(failed)}
	t.log.Info("token keep-alive round finished",
		zap.Int("checked", res.Checked),
		zap.Int("refreshed", res.Refreshed),
		zap.Int("failed", res.Failed))
	return res
}
