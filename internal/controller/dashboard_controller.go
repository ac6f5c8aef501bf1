package controller

import (
	"strconv"

	"exam_practice_backend/internal/service"
	"exam_practice_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	DashboardService *service.DashboardService
}

func NewDashboardController(dashboardService *service.DashboardService) *DashboardController {
	return &DashboardController{DashboardService: dashboardService}
}

// @Summary 仪表盘总览
// @Description 已考次数、平均分、最高分、通过率、总用时与分类表现
// @Tags 仪表盘
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=model.DashboardAnalytics}
// @Router /api/dashboard/analytics [get]
func (c *DashboardController) GetAnalytics(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	analytics, err := c.DashboardService.GetAnalytics(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, analytics)
}

// @Summary 成绩趋势
// @Description 最近 N 天每日平均分，没有记录的日期为 0
// @Tags 仪表盘
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param days query int false "天数，默认 30，最大 365"
// @Success 200 {object} util.Response{data=model.PerformanceTrend}
// @Router /api/dashboard/performance [get]
func (c *DashboardController) GetPerformance(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	days, _ := strconv.Atoi(ctx.DefaultQuery("days", "30"))
	trend, err := c.DashboardService.GetPerformance(user.UserID, days)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, trend)
}

// @Summary 答题历史
// @Tags 仪表盘
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]model.HistoryEntry}}
// @Router /api/dashboard/history [get]
func (c *DashboardController) GetHistory(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page, limit := util.PageParams(ctx)
	entries, total, err := c.DashboardService.GetHistory(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Page(ctx, entries, total, page, limit)
}
