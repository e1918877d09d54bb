package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"etsy_backoffice/internal/api/dto"
	"etsy_backoffice/internal/middleware"
	"etsy_backoffice/internal/service"
)

// OrderController 订单控制器
type OrderController struct {
	svc *service.OrderService
	log *zap.Logger
}

// NewOrderController 创建订单控制器
func NewOrderController(svc *service.OrderService, log *zap.Logger) *OrderController {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderController{svc: svc, log: log}
}

// ==================== 订单列表与详情 ====================

// ListByShop 店铺订单列表
// @Summary 店铺订单列表
// @Tags Order (订单)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺ID"
// @Success 200 {object} dto.ListOrdersResponse
// @Router /api/shops/{id}/orders [get]
func (c *OrderController) ListByShop(ctx *gin.Context) {
	shopID, valid := parseID(ctx, "id")
	if !valid {
		return
	}

	resp, err := c.svc.ListByShop(ctx.Request.Context(), middleware.GetUserID(ctx), shopID)
	if err != nil {
		renderError(ctx, c.log, err)
		return
	}
	ok(ctx, "", resp)
}

// GetDetail 订单详情
// @Summary 订单详情
// @Tags Order (订单)
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Success 200 {object} dto.OrderDetailResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/orders/{id} [get]
func (c *OrderController) GetDetail(ctx *gin.Context) {
	id, valid := parseID(ctx, "id")
	if !valid {
		return
	}

	resp, err := c.svc.GetDetail(ctx.Request.Context(), middleware.GetUserID(ctx), id)
	if err != nil {
		renderError(ctx, c.log, err)
		return
	}
	ok(ctx, "", resp)
}

// ==================== 状态变更 ====================

// UpdateStatus 本地推进订单状态
// @Summary 修改订单状态
// @Description 只允许 pending → processing → completed，以及 pending/processing → cancelled
// @Tags Order (订单)
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "订单ID"
// @Param request body dto.UpdateOrderStatusRequest true "目标状态"
// @Success 200 {object} dto.OrderListItem
// @Failure 422 {object} map[string]interface{} "不允许的状态变更"
// @Router /api/orders/{id}/status [patch]
func (c *OrderController) UpdateStatus(ctx *gin.Context) {
	id, valid := parseID(ctx, "id")
	if !valid {
		return
	}

	var req dto.UpdateOrderStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	order, err := c.svc.UpdateStatus(ctx.Request.Context(), middleware.GetUserID(ctx), id, req.Status)
	if err != nil {
		renderError(ctx, c.log, err)
		return
	}
	c.log.Info("order status updated", append(middleware.AuditFields(ctx.Request.Context()),
		zap.Int64("order_id", id), zap.String("status", order.Status))...)

	ok(ctx, "更新成功", dto.NewOrderListItem(order))
}
