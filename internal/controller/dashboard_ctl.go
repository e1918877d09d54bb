package controller

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"etsy_backoffice/internal/middleware"
	"etsy_backoffice/internal/service"
)

// DashboardController 仪表盘
type DashboardController struct {
	svc *service.DashboardService
	log *zap.Logger
}

func NewDashboardController(svc *service.DashboardService, log *zap.Logger) *DashboardController {
	if log == nil {
		log = zap.NewNop()
	}
	return &DashboardController{svc: svc, log: log}
}

// Overview 仪表盘概览
// @Summary 仪表盘概览
// @Description 店铺/商品/订单总数、低库存商品、按币种统计的销售额、最近订单
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.DashboardResponse
// @Router /api/dashboard [get]
func (c *DashboardController) Overview(ctx *gin.Context) {
	resp, err := c.svc.Overview(ctx.Request.Context(), middleware.GetUserID(ctx))
	if err != nil {
		renderError(ctx, c.log, err)
		return
	}
	ok(ctx, "", resp)
}
