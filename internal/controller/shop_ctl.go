package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"etsy_backoffice/internal/api/dto"
	"etsy_backoffice/internal/middleware"
	"etsy_backoffice/internal/service"
)

// ShopController 已连接店铺的管理：列表、断开、手动同步、刷新 Token、本地设置
type ShopController struct {
	shopSvc  *service.ShopService
	tokenSvc *service.TokenService
	syncSvc  *service.SyncService
	log      *zap.Logger
}

func NewShopController(shopSvc *service.ShopService, tokenSvc *service.TokenService, syncSvc *service.SyncService, log *zap.Logger) *ShopController {
	if log == nil {
		log = zap.NewNop()
	}
	return &ShopController{
		shopSvc:  shopSvc,
		tokenSvc: tokenSvc,
		syncSvc:  syncSvc,
		log:      log,
	}
}

// GetShopList 获取店铺列表
// @Summary 获取店铺列表
// @Description 当前用户连接的所有店铺，不包含 Token
// @Tags Shop (店铺管理)
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ShopListResp "店铺列表"
// @Router /api/shops [get]
func (c *ShopController) GetShopList(ctx *gin.Context) {
	resp, err := c.shopSvc.ListShops(ctx.Request.Context(), middleware.GetUserID(ctx))
	if err != nil {
		renderError(ctx, c.log, err)
		return
	}
	ok(ctx, "", resp)
}

// GetShopDetail 获取店铺详情
// @Summary 获取店铺详情
// @Tags Shop (店铺管理)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺ID"
// @Success 200 {object} dto.ShopResp "店铺详情"
// @Failure 404 {object} map[string]interface{} "店铺不存在"
// @Router /api/shops/{id} [get]
func (c *ShopController) GetShopDetail(ctx *gin.Context) {
	id, valid := parseID(ctx, "id")
	if !valid {
		return
	}

	resp, err := c.shopSvc.GetShopResp(ctx.Request.Context(), middleware.GetUserID(ctx), id)
	if err != nil {
		renderError(ctx, c.log, err)
		return
	}
	ok(ctx, "", resp)
}

// Disconnect 断开店铺
// @Summary 断开店铺
// @Description 删除店铺及其商品、订单、订单明细
// @Tags Shop (店铺管理)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺ID"
// @Success 200 {object} dto.DisconnectResp "删除的数据量"
// @Failure 404 {object} map[string]interface{} "店铺不存在"
// @Router /api/shops/{id} [delete]
func (c *ShopController) Disconnect(ctx *gin.Context) {
	id, valid := parseID(ctx, "id")
	if !valid {
		return
	}

	res, err := c.syncSvc.Disconnect(ctx.Request.Context(), middleware.GetUserID(ctx), id)
	if err != nil {
		renderError(ctx, c.log, err)
		return
	}
	c.log.Info("shop disconnected by user", append(middleware.AuditFields(ctx.Request.Context()), zap.Int64("shop_id", id))...)

	ok(ctx, "店铺已断开", dto.DisconnectResp{
		Products:   res.Products,
		Orders:     res.Orders,
		OrderItems: res.OrderItems,
	})
}

// Sync 手动同步
// @Summary 手动同步店铺
// @Description 同步商品与订单，同一店铺 60 秒内只能触发一次
// @Tags Shop (店铺管理)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺ID"
// @Success 200 {object} service.SyncReport
// @Failure 409 {object} map[string]interface{} "同步中/需重新授权"
// @Failure 429 {object} map[string]interface{} "冷却中"
// @Router /api/shops/{id}/sync [post]
func (c *ShopController) Sync(ctx *gin.Context) {
	id, valid := parseID(ctx, "id")
	if !valid {
		return
	}

	reqCtx := ctx.Request.Context()
	if _, err := c.shopSvc.GetShop(reqCtx, middleware.GetUserID(ctx), id); err != nil {
		renderError(ctx, c.log, err)
		return
	}

	report, err := c.syncSvc.SyncShop(reqCtx, id)
	if err != nil {
		renderError(ctx, c.log, err)
		return
	}
	ok(ctx, "同步完成", report)
}

// RefreshToken 手动强制刷新 Token
// @Summary 刷新店铺 Token
// @Tags Shop (店铺管理)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺ID"
// @Success 200 {object} dto.ShopResp "刷新后的店铺"
// @Failure 409 {object} map[string]interface{} "需重新授权"
// @Failure 502 {object} map[string]interface{} "Etsy 暂时不可用"
// @Router /api/shops/{id}/refresh [post]
func (c *ShopController) RefreshToken(ctx *gin.Context) {
	id, valid := parseID(ctx, "id")
	if !valid {
		return
	}

	reqCtx := ctx.Request.Context()
	if _, err := c.shopSvc.GetShop(reqCtx, middleware.GetUserID(ctx), id); err != nil {
		renderError(ctx, c.log, err)
		return
	}

	shop, err := c.tokenSvc.Refresh(reqCtx, id)
	if err != nil {
		renderError(ctx, c.log, err)
		return
	}
	ok(ctx, "Token 刷新成功", dto.NewShopResp(shop))
}

// UpdateSettings 修改本地同步设置
// @Summary 修改同步设置
// @Tags Shop (店铺管理)
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺ID"
// @Param request body dto.ShopSettingsReq true "同步设置"
// @Success 200 {object} dto.ShopResp
// @Failure 400 {object} map[string]interface{} "参数错误"
// @Router /api/shops/{id}/settings [patch]
func (c *ShopController) UpdateSettings(ctx *gin.Context) {
	id, valid := parseID(ctx, "id")
	if !valid {
		return
	}

	var req dto.ShopSettingsReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		fail(ctx, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	resp, err := c.shopSvc.UpdateSettings(ctx.Request.Context(), middleware.GetUserID(ctx), id, &req)
	if err != nil {
		renderError(ctx, c.log, err)
		return
	}
	ok(ctx, "更新成功", resp)
}

// ListProducts 店铺商品
// @Summary 店铺商品列表
// @Tags Shop (店铺管理)
// @Produce json
// @Security BearerAuth
// @Param id path int true "店铺ID"
// @Success 200 {object} dto.ProductListResponse
// @Router /api/shops/{id}/products [get]
func (c *ShopController) ListProducts(ctx *gin.Context) {
	id, valid := parseID(ctx, "id")
	if !valid {
		return
	}

	resp, err := c.shopSvc.ListProducts(ctx.Request.Context(), middleware.GetUserID(ctx), id)
	if err != nil {
		renderError(ctx, c.log, err)
		return
	}
	ok(ctx, "", resp)
}
