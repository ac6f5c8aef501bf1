package controller

import (
	"exam_practice_backend/internal/service"
	"exam_practice_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// LoginRequest 密码登录
// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// MagicLinkRequest 申请登录链接
// swagger:model MagicLinkRequest
type MagicLinkRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyMagicLinkRequest 校验登录链接
// swagger:model VerifyMagicLinkRequest
type VerifyMagicLinkRequest struct {
	Token string `json:"token" binding:"required"`
}

// Register godoc
// @Summary 注册新用户
// @Description 邮箱密码注册，成功后直接返回登录令牌
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body service.RegisterRequest true "注册信息"
// @Success 201 {object} util.Response{data=service.AuthResult} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req service.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.AuthService.Register(req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Created(ctx, res)
}

// Login godoc
// @Summary 密码登录
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body LoginRequest true "登录信息"
// @Success 200 {object} util.Response{data=service.AuthResult} "登录成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "邮箱或密码错误"
// @Router /api/auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.AuthService.Login(req.Email, req.Password)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// RequestMagicLink godoc
// @Summary 发送登录链接
// @Description 无论邮箱是否注册都返回成功，首次使用链接登录时自动注册
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body MagicLinkRequest true "邮箱"
// @Success 200 {object} util.Response "已发送"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/auth/magic-link [post]
func (c *AuthController) RequestMagicLink(ctx *gin.Context) {
	var req MagicLinkRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AuthService.RequestMagicLink(ctx.Request.Context(), req.Email); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"sent": true})
}

// VerifyMagicLink godoc
// @Summary 使用登录链接登录
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body VerifyMagicLinkRequest true "链接中的令牌"
// @Success 200 {object} util.Response{data=service.AuthResult} "登录成功"
// @Failure 401 {object} util.Response "链接无效或已过期"
// @Router /api/auth/magic-link/verify [post]
func (c *AuthController) VerifyMagicLink(ctx *gin.Context) {
	var req VerifyMagicLinkRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.AuthService.VerifyMagicLink(req.Token)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// Logout godoc
// @Summary 退出登录
// @Description 吊销当前令牌对应的会话
// @Tags 认证
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response "已退出"
// @Router /api/auth/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	if err := c.AuthService.Logout(claims); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// Refresh godoc
// @Summary 刷新令牌
// @Description 签发新令牌，旧令牌立即失效
// @Tags 认证
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.AuthResult} "成功"
// @Router /api/auth/refresh [post]
func (c *AuthController) Refresh(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	res, err := c.AuthService.Refresh(claims)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// Me godoc
// @Summary 当前登录用户
// @Tags 认证
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.User} "成功"
// @Router /api/auth/me [get]
func (c *AuthController) Me(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	user, err := c.AuthService.GetCurrentUser(claims.UserID)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, user)
}
