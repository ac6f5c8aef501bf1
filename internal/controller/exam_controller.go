package controller

import (
	"encoding/json"
	"errors"
	"io"

	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/service"
	"exam_practice_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	ExamService *service.ExamService
	Hub         *service.ExamHub
}

func NewExamController(examService *service.ExamService, hub *service.ExamHub) *ExamController {
	return &ExamController{ExamService: examService, Hub: hub}
}

// NavigateRequest 跳转到指定题目（从 0 开始）
// swagger:model NavigateRequest
type NavigateRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// AnswerRequest 作答，payload 结构由题型决定
// swagger:model AnswerRequest
type AnswerRequest struct {
	Type    exam.QuestionType `json:"type" binding:"required,questiontype"`
	Payload json.RawMessage   `json:"payload" binding:"required" swaggertype:"object"`
}

// FinishRequest 交卷，存在未答题目时需要 confirm
// swagger:model FinishRequest
type FinishRequest struct {
	Confirm bool `json:"confirm"`
}

// StartSession godoc
// @Summary 开始答题
// @Description 已有进行中的会话时直接返回该会话
// @Tags 答题
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "试卷ID"
// @Success 200 {object} util.Response{data=service.SessionView} "成功"
// @Failure 403 {object} util.Response "未购买"
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/tests/{id}/sessions [post]
func (c *ExamController) StartSession(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	view, err := c.ExamService.StartSession(claims.UserID, claims.IsAdmin(), ctx.Param("id"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// GetSession godoc
// @Summary 会话详情
// @Description 刷新页面后用于恢复答题进度与剩余时间
// @Tags 答题
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionView} "成功"
// @Failure 404 {object} util.Response "会话不存在"
// @Router /api/sessions/{id} [get]
func (c *ExamController) GetSession(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	view, err := c.ExamService.GetSession(claims.UserID, ctx.Param("id"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// Navigate godoc
// @Summary 切换题目
// @Tags 答题
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话ID"
// @Param   body body NavigateRequest true "题目下标"
// @Success 200 {object} util.Response{data=service.SessionView} "成功"
// @Failure 400 {object} util.Response "下标越界"
// @Failure 410 {object} util.Response "考试时间已到"
// @Router /api/sessions/{id}/navigate [put]
func (c *ExamController) Navigate(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req NavigateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	view, err := c.ExamService.Navigate(claims.UserID, ctx.Param("id"), *req.Index)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// RecordAnswer godoc
// @Summary 保存作答
// @Description 覆盖该题之前的作答，答题过程中不返回对错
// @Tags 答题
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话ID"
// @Param   questionId path string true "题目ID"
// @Param   body body AnswerRequest true "作答"
// @Success 200 {object} util.Response{data=service.AnswerView} "成功"
// @Failure 400 {object} util.Response "作答与题型不符"
// @Failure 409 {object} util.Response "会话已结束"
// @Failure 410 {object} util.Response "考试时间已到"
// @Router /api/sessions/{id}/answers/{questionId} [put]
func (c *ExamController) RecordAnswer(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	resp, err := exam.DecodeResponse(req.Type, req.Payload)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	ans, err := c.ExamService.RecordAnswer(claims.UserID, ctx.Param("id"), ctx.Param("questionId"), resp)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, ans)
}

// ToggleFlag godoc
// @Summary 标记/取消标记题目
// @Tags 答题
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话ID"
// @Param   questionId path string true "题目ID"
// @Success 200 {object} util.Response{data=object} "返回新的标记状态"
// @Router /api/sessions/{id}/questions/{questionId}/flag [post]
func (c *ExamController) ToggleFlag(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	flagged, err := c.ExamService.ToggleFlag(claims.UserID, ctx.Param("id"), ctx.Param("questionId"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"questionId": ctx.Param("questionId"), "flagged": flagged})
}

// FinishSession godoc
// @Summary 交卷
// @Description 存在未答题目且未确认时返回 409 与未答题目下标
// @Tags 答题
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话ID"
// @Param   body body FinishRequest false "是否确认"
// @Success 200 {object} util.Response{data=service.SessionReview} "成绩"
// @Failure 409 {object} util.Response "存在未答题目"
// @Failure 410 {object} util.Response "考试时间已到"
// @Router /api/sessions/{id}/finish [post]
func (c *ExamController) FinishSession(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req FinishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		util.BadRequest(ctx, err.Error())
		return
	}
	review, err := c.ExamService.FinishSession(claims.UserID, ctx.Param("id"), req.Confirm)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, review)
}

// ReviewSession godoc
// @Summary 答题回顾
// @Description 逐题展示作答、正确答案与解析，仅对已结束的会话开放
// @Tags 答题
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionReview} "成功"
// @Failure 409 {object} util.Response "会话仍在进行中"
// @Router /api/sessions/{id}/review [get]
func (c *ExamController) ReviewSession(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	review, err := c.ExamService.ReviewSession(claims.UserID, ctx.Param("id"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, review)
}

// RetrySession godoc
// @Summary 重新作答
// @Description 基于已结束的会话开启同一试卷的新会话
// @Tags 答题
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionView} "成功"
// @Failure 409 {object} util.Response "会话仍在进行中"
// @Router /api/sessions/{id}/retry [post]
func (c *ExamController) RetrySession(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	view, err := c.ExamService.RetrySession(claims.UserID, claims.IsAdmin(), ctx.Param("id"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// TimerSocket godoc
// @Summary 倒计时推送
// @Description WebSocket，每秒推送 TICK，剩余时间低于阈值推送 LOW_TIME，归零推送 TIME_UP 并自动交卷。令牌通过 query 参数 token 传递
// @Tags 答题
// @Param   id path string true "会话ID"
// @Param   token query string true "登录令牌"
// @Router /api/sessions/{id}/ws [get]
func (c *ExamController) TimerSocket(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	if err := c.Hub.ServeTimer(ctx.Writer, ctx.Request, claims.UserID, ctx.Param("id")); err != nil {
		handleServiceError(ctx, err)
	}
}
