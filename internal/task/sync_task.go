package task

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"etsy_backoffice/internal/repository"
	"etsy_backoffice/internal/service"
)

// ==================== SyncTask 自动同步 ====================

// SyncTask 按店铺各自的 sync_interval 定时同步商品与订单
// 调度频率只决定检查粒度，是否同步由 Shop.IsSyncDue 判断
type SyncTask struct {
	shops repository.ShopRepository
	sync  *service.SyncService
	cron  *cron.Cron

	schedule    string
	concurrency int
	runTimeout  time.Duration

	now func() time.Time
	log *zap.Logger
}

// SyncRunResult 一轮自动同步的统计
type SyncRunResult struct {
	Due     int
	Synced  int
	Skipped int
	Failed  int
}

func NewSyncTask(shops repository.ShopRepository, sync *service.SyncService, schedule string, concurrency int, runTimeout time.Duration, log *zap.Logger) *SyncTask {
	if log == nil {
		log = zap.NewNop()
	}
	if schedule == "" {
		schedule = "0 */5 * * * *"
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	return &SyncTask{
		shops:       shops,
		sync:        sync,
		cron:        newCron(log),
		schedule:    schedule,
		concurrency: concurrency,
		runTimeout:  runTimeout,
		now:         time.Now,
		log:         log,
	}
}

// Start 启动定时同步
func (t *SyncTask) Start() error {
	if _, err := t.cron.AddFunc(t.schedule, t.tick); err != nil {
		return err
	}
	t.cron.Start()
	t.log.Info("auto sync started", zap.String("schedule", t.schedule), zap.Int("concurrency", t.concurrency))
	return nil
}

// Stop 停止调度并等待正在执行的一轮结束
func (t *SyncTask) Stop() {
	<-t.cron.Stop().Done()
	t.log.Info("auto sync stopped")
}

func (t *SyncTask) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), t.runTimeout)
	defer cancel()
	t.RunOnce(ctx)
}

// RunOnce 同步所有到期的店铺
func (t *SyncTask) RunOnce(ctx context.Context) SyncRunResult {
	candidates, err := t.shops.ListSyncCandidates(ctx)
	if err != nil {
		t.log.Error("list sync candidates failed", zap.Error(err))
		return SyncRunResult{}
	}

	now := t.now()
	due := make([]int64, 0, len(candidates))
	for i := range candidates {
		if candidates[i].IsSyncDue(now) {
			due = append(due, candidates[i].ID)
		}
	}
	if len(due) == 0 {
		return SyncRunResult{}
	}

	var synced, skipped, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	for _, shopID := range due {
		shopID := shopID
		if gctx.Err() != nil {
			t.log.Warn("auto sync interrupted", zap.Error(gctx.Err()))
			break
		}
		g.Go(func() error {
			_, err := t.sync.SyncShop(gctx, shopID)
			switch {
			case err == nil:
				atomic.AddInt64(&synced, 1)
			case errors.Is(err, service.ErrSyncInProgress),
				errors.Is(err, service.ErrShopGone),
				errors.Is(err, service.ErrShopNotFound):
				atomic.AddInt64(&skipped, 1)
			default:
				// SyncShop 已记录失败原因
				atomic.AddInt64(&failed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := SyncRunResult{Due: len(due), Synced: int(synced), Skipped: int(skipped), Failed: int(failed)}
	t.log.Info("auto sync round finished",
		zap.Int("due", res.Due),
		zap.Int("synced", res.Synced),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res
}
