package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"etsy_backoffice/internal/api/dto"
	"etsy_backoffice/internal/model"
	"etsy_backoffice/internal/repository"
)

// OrderService 订单查询与本地状态推进
type OrderService struct {
	repos *repository.Repositories
	log   *zap.Logger
}

func NewOrderService(repos *repository.Repositories, log *zap.Logger) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{repos: repos, log: log}
}

// ListByShop 店铺订单，按下单时间倒序
func (s *OrderService) ListByShop(ctx context.Context, ownerID, shopID int64) (*dto.ListOrdersResponse, error) {
	if _, err := s.repos.Shops.GetByIDForOwner(ctx, shopID, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, err
	}
	orders, err := s.repos.Orders.ListByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	out := &dto.ListOrdersResponse{Total: len(orders), List: make([]dto.OrderListItem, 0, len(orders))}
	for i := range orders {
		out.List = append(out.List, dto.NewOrderListItem(&orders[i]))
	}
	return out, nil
}

// GetDetail 订单详情 (含明细)
func (s *OrderService) GetDetail(ctx context.Context, ownerID, orderID int64) (*dto.OrderDetailResponse, error) {
	if _, err := s.owned(ctx, ownerID, orderID); err != nil {
		return nil, err
	}
	order, err := s.repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items := order.Items
	if items == nil {
		items = []model.OrderItem{}
	}
	return &dto.OrderDetailResponse{
		OrderListItem: dto.NewOrderListItem(order),
		BuyerEmail:    order.BuyerEmail,
		Items:         items,
	}, nil
}

// UpdateStatus 只允许前进: pending -> processing -> completed, pending|processing -> cancelled
func (s *OrderService) UpdateStatus(ctx context.Context, ownerID, orderID int64, to string) (*model.Order, error) {
	if !model.IsValidOrderStatus(to) {
		return nil, ErrInvalidTransition
	}
	order, err := s.owned(ctx, ownerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == to {
		return order, nil
	}
	if !model.CanTransition(order.Status, to) {
		return nil, ErrInvalidTransition
	}

	ok, err := s.repos.Orders.AdvanceStatus(ctx, order.ID, order.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 同步或其他请求抢先改了状态
		return nil, ErrInvalidTransition
	}
	s.log.Info("order status updated",
		zap.Int64("order_id", order.ID),
		zap.String("from", order.Status),
		zap.String("to", to))
	order.Status = to
	return order, nil
}

func (s *OrderService) owned(ctx context.Context, ownerID, orderID int64) (*model.Order, error) {
	order, err := s.repos.Orders.GetByIDForOwner(ctx, orderID, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}
