package controller

import (
	"errors"
	"net/http"

	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// handleServiceError 业务错误到 HTTP 状态码的统一映射，未识别的错误记录日志后返回 500
func handleServiceError(ctx *gin.Context, err error) {
	var unanswered *exam.UnansweredError
	switch {
	case errors.As(err, &unanswered):
		util.ErrorWithData(ctx, http.StatusConflict, "存在未作答的题目，请确认后再交卷",
			gin.H{"unanswered": unanswered.Indexes})

	case errors.Is(err, util.ErrInvalidCredentials):
		util.Error(ctx, http.StatusUnauthorized, "邮箱或密码错误")
	case errors.Is(err, util.ErrMagicLinkInvalid):
		util.Error(ctx, http.StatusUnauthorized, "登录链接无效或已过期")
	case errors.Is(err, util.ErrSessionRevoked):
		util.Unauthorized(ctx)
	case errors.Is(err, util.ErrAccountDisabled):
		util.Error(ctx, http.StatusForbidden, "账号已被禁用")
	case errors.Is(err, util.ErrPermissionDenied):
		util.ForbiddenRedirect(ctx, util.DashboardPath)
	case errors.Is(err, util.ErrPurchaseRequired):
		util.Error(ctx, http.StatusForbidden, "请先购买该试卷")
	case errors.Is(err, util.ErrInvalidSignature):
		util.Error(ctx, http.StatusForbidden, "通知签名校验失败")

	case errors.Is(err, util.ErrValidation),
		errors.Is(err, exam.ErrQuestionOutOfRange),
		errors.Is(err, exam.ErrUnknownQuestion),
		errors.Is(err, exam.ErrUnknownQuestionType),
		errors.Is(err, exam.ErrResponseMismatch),
		errors.Is(err, exam.ErrEmptyResponse):
		util.BadRequest(ctx, err.Error())

	case errors.Is(err, util.ErrUserNotFound),
		errors.Is(err, util.ErrTestNotFound),
		errors.Is(err, util.ErrTestInactive),
		errors.Is(err, util.ErrCategoryNotFound),
		errors.Is(err, util.ErrQuestionNotFound),
		errors.Is(err, util.ErrSessionNotFound),
		errors.Is(err, util.ErrPurchaseNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())

	case errors.Is(err, util.ErrEmailRegistered):
		util.Conflict(ctx, "该邮箱已被注册")
	case errors.Is(err, util.ErrSessionCompleted),
		errors.Is(err, util.ErrSessionActive),
		errors.Is(err, exam.ErrInvalidTransition),
		errors.Is(err, exam.ErrNoQuestions):
		util.Conflict(ctx, err.Error())

	case errors.Is(err, util.ErrSessionExpired):
		util.Gone(ctx, "考试时间已到，已自动交卷")
	case errors.Is(err, util.ErrPaymentDisabled):
		util.Error(ctx, http.StatusServiceUnavailable, "支付暂不可用")

	default:
		util.LogInternalError(ctx, err)
	}
}

// currentUser 受保护路由上一定存在，缺失时直接返回 401
func currentUser(ctx *gin.Context) (*util.Claims, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	return claims, true
}
