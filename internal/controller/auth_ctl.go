package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"etsy_backoffice/internal/api/dto"
	"etsy_backoffice/internal/middleware"
	"etsy_backoffice/internal/service"
)

// AuthController Etsy 店铺授权
type AuthController struct {
	authService *service.AuthService
	log         *zap.Logger
}

func NewAuthController(s *service.AuthService, log *zap.Logger) *AuthController {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthController{authService: s, log: log}
}

// Connect
// @Summary 获取 Etsy 授权链接
// @Description 生成 PKCE 授权链接，state 与 verifier 保存在当前浏览器会话中
// @Tags Etsy (店铺授权)
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ConnectResp
// @Failure 400 {object} map[string]interface{}
// @Router /api/etsy/connect [post]
func (ctrl *AuthController) Connect(c *gin.Context) {
	url, err := ctrl.authService.Initiate(c.Request.Context(), middleware.GetSessionID(c), middleware.GetUserID(c))
	if err != nil {
		renderError(c, ctrl.log, err)
		return
	}

	ok(c, "获取成功", dto.ConnectResp{AuthURL: url})
}

// Callback
// @Summary Etsy 授权回调
// @Description 校验 state 后用 code + verifier 换取 Token，并保存店铺
// @Tags Etsy (店铺授权)
// @Produce json
// @Param code query string false "授权码"
// @Param state query string true "安全校验码"
// @Param error query string false "Etsy 返回的错误，如 access_denied"
// @Success 200 {object} dto.CallbackResp
// @Failure 400 {object} map[string]interface{} "state 不匹配/缺少 code"
// @Failure 403 {object} map[string]interface{} "拒绝授权"
// @Failure 409 {object} map[string]interface{} "店铺已被其他账号连接"
// @Router /api/etsy/callback [get]
func (ctrl *AuthController) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	sid := middleware.GetSessionID(c)
	state := c.Query("state")

	if reason := c.Query("error"); reason != "" {
		err := ctrl.authService.HandleDenied(ctx, sid, state, reason)
		renderError(c, ctrl.log, err)
		return
	}

	res, err := ctrl.authService.HandleCallback(ctx, sid, state, c.Query("code"))
	if err != nil {
		renderError(c, ctrl.log, err)
		return
	}

	msg := "店铺绑定成功"
	if !res.Created {
		msg = "店铺重新授权成功"
	}
	ok(c, msg, dto.CallbackResp{
		State:   string(res.State),
		Created: res.Created,
		Shop:    dto.NewShopResp(res.Shop),
	})
}

// Status
// @Summary 当前会话的授权流程状态
// @Tags Etsy (店铺授权)
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/etsy/status [get]
func (ctrl *AuthController) Status(c *gin.Context) {
	state, err := ctrl.authService.Status(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		renderError(c, ctrl.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"state": state}})
}
