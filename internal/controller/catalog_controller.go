package controller

import (
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/service"
	"exam_practice_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CatalogController struct {
	CatalogService *service.CatalogService
}

func NewCatalogController(catalogService *service.CatalogService) *CatalogController {
	return &CatalogController{CatalogService: catalogService}
}

// viewer 未登录时 UserID 为 0
func viewer(ctx *gin.Context) service.Viewer {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		return service.Viewer{}
	}
	return service.Viewer{UserID: claims.UserID, IsAdmin: claims.IsAdmin()}
}

// ListTests godoc
// @Summary 试卷列表
// @Description 只返回上架的试卷；登录后标记已购买的试卷
// @Tags 题库
// @Produce  json
// @Param   categoryId query int false "分类ID"
// @Param   search query string false "标题关键字"
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]service.TestSummary}} "成功"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/tests [get]
func (c *CatalogController) ListTests(ctx *gin.Context) {
	page, limit := util.PageParams(ctx)
	filter := repository.TestFilter{
		CategoryID: util.MustParseUint(ctx.Query("categoryId")),
		Search:     ctx.Query("search"),
		Page:       page,
		Limit:      limit,
	}

	tests, total, err := c.CatalogService.ListTests(filter, viewer(ctx))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Page(ctx, tests, total, page, limit)
}

// GetTest godoc
// @Summary 试卷详情
// @Description 返回题目但不包含答案，选项顺序已打乱
// @Tags 题库
// @Produce  json
// @Param   id path string true "试卷ID"
// @Success 200 {object} util.Response{data=service.TestDetail} "成功"
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/tests/{id} [get]
func (c *CatalogController) GetTest(ctx *gin.Context) {
	detail, err := c.CatalogService.GetTest(ctx.Param("id"), viewer(ctx))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// ListCategories godoc
// @Summary 分类列表
// @Tags 题库
// @Produce  json
// @Success 200 {object} util.Response{data=[]model.Category} "成功"
// @Router /api/categories [get]
func (c *CatalogController) ListCategories(ctx *gin.Context) {
	categories, err := c.CatalogService.ListCategories()
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, categories)
}
