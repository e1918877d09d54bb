package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"etsy_backoffice/internal/api/dto"
	"etsy_backoffice/internal/model"
	"etsy_backoffice/internal/repository"
)

const (
	dashboardLowStockLimit = 20
	dashboardRecentOrders  = 10
)

// DashboardService 首页汇总
type DashboardService struct {
	dashboard repository.DashboardRepository
}

func NewDashboardService(dashboard repository.DashboardRepository) *DashboardService {
	return &DashboardService{dashboard: dashboard}
}

// Overview 四个查询互不依赖，并发执行
func (s *DashboardService) Overview(ctx context.Context, ownerID int64) (*dto.DashboardResponse, error) {
	var (
		totals   *repository.DashboardTotals
		lowStock []model.Product
		revenue  []repository.CurrencyRevenue
		recent   []model.Order
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = s.dashboard.Totals(gctx, ownerID)
		return err
	})
	g.Go(func() (err error) {
		lowStock, err = s.dashboard.LowStockProducts(gctx, ownerID, dashboardLowStockLimit)
		return err
	})
	g.Go(func() (err error) {
		revenue, err = s.dashboard.RevenueByCurrency(gctx, ownerID)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.dashboard.RecentOrders(gctx, ownerID, dashboardRecentOrders)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &dto.DashboardResponse{
		Totals:       *totals,
		LowStock:     lowStock,
		Revenue:      revenue,
		RecentOrders: make([]dto.OrderListItem, 0, len(recent)),
	}
	if out.LowStock == nil {
		out.LowStock = []model.Product{}
	}
	if out.Revenue == nil {
		out.Revenue = []repository.CurrencyRevenue{}
	}
	for i := range recent {
		out.RecentOrders = append(out.RecentOrders, dto.NewOrderListItem(&recent[i]))
	}
	return out, nil
}
