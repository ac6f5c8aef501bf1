package controller

import (
	"exam_practice_backend/internal/exam"
	"exam_practice_backend/internal/repository"
	"exam_practice_backend/internal/service"
	"exam_practice_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	AdminService   *service.AdminService
	StorageService *service.StorageService
}

func NewAdminController(adminService *service.AdminService, storageService *service.StorageService) *AdminController {
	return &AdminController{
		AdminService:   adminService,
		StorageService: storageService,
	}
}

// PromoteRequest 授予管理员
// swagger:model PromoteRequest
type PromoteRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// SetQuestionsRequest 按顺序设置试卷题目
// swagger:model SetQuestionsRequest
type SetQuestionsRequest struct {
	QuestionIDs []string `json:"questionIds" binding:"required"`
}

// SetActiveRequest 上架/下架
// swagger:model SetActiveRequest
type SetActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// Promote godoc
// @Summary 授予管理员
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body PromoteRequest true "邮箱"
// @Success 200 {object} util.Response{data=model.User}
// @Failure 403 {object} util.Response "非管理员，data.redirect 为跳转地址"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/admin/promote [post]
func (c *AdminController) Promote(ctx *gin.Context) {
	var req PromoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user, err := c.AdminService.PromoteToAdmin(req.Email)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// ListCategories godoc
// @Summary 分类列表（管理）
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Category}
// @Router /api/admin/categories [get]
func (c *AdminController) ListCategories(ctx *gin.Context) {
	categories, err := c.AdminService.ListCategories()
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, categories)
}

// CreateCategory godoc
// @Summary 创建分类
// @Description slug 为空时由名称生成
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CategoryRequest true "分类"
// @Success 201 {object} util.Response{data=model.Category}
// @Router /api/admin/categories [post]
func (c *AdminController) CreateCategory(ctx *gin.Context) {
	var req service.CategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	category, err := c.AdminService.CreateCategory(req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Created(ctx, category)
}

// UpdateCategory godoc
// @Summary 更新分类
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Param body body service.CategoryRequest true "分类"
// @Success 200 {object} util.Response{data=model.Category}
// @Failure 404 {object} util.Response "分类不存在"
// @Router /api/admin/categories/{id} [put]
func (c *AdminController) UpdateCategory(ctx *gin.Context) {
	var req service.CategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	category, err := c.AdminService.UpdateCategory(util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, category)
}

// DeleteCategory godoc
// @Summary 删除分类
// @Description 题目的分类置空，试卷解除关联
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类ID"
// @Success 200 {object} util.Response
// @Router /api/admin/categories/{id} [delete]
func (c *AdminController) DeleteCategory(ctx *gin.Context) {
	if err := c.AdminService.DeleteCategory(util.MustParseUint(ctx.Param("id"))); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListQuestions godoc
// @Summary 题目列表（含答案）
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param categoryId query int false "分类ID"
// @Param type query string false "题型"
// @Param search query string false "题干关键字"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]model.Question}}
// @Router /api/admin/questions [get]
func (c *AdminController) ListQuestions(ctx *gin.Context) {
	page, limit := util.PageParams(ctx)
	filter := repository.QuestionFilter{
		CategoryID: util.MustParseUint(ctx.Query("categoryId")),
		Type:       exam.QuestionType(ctx.Query("type")),
		Search:     ctx.Query("search"),
		Page:       page,
		Limit:      limit,
	}
	if filter.Type != "" && !filter.Type.Valid() {
		util.BadRequest(ctx, "unknown question type")
		return
	}

	questions, total, err := c.AdminService.ListQuestions(filter)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Page(ctx, questions, total, page, limit)
}

// GetQuestion godoc
// @Summary 题目详情（含答案）
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "题目ID"
// @Success 200 {object} util.Response{data=model.Question}
// @Router /api/admin/questions/{id} [get]
func (c *AdminController) GetQuestion(ctx *gin.Context) {
	q, err := c.AdminService.GetQuestion(ctx.Param("id"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// CreateQuestion godoc
// @Summary 创建题目
// @Description 只填写与题型对应的选项字段
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.QuestionRequest true "题目"
// @Success 201 {object} util.Response{data=model.Question}
// @Failure 400 {object} util.Response "题目校验失败"
// @Router /api/admin/questions [post]
func (c *AdminController) CreateQuestion(ctx *gin.Context) {
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q, err := c.AdminService.CreateQuestion(req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// UpdateQuestion godoc
// @Summary 更新题目
// @Description 选项整体替换
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "题目ID"
// @Param body body service.QuestionRequest true "题目"
// @Success 200 {object} util.Response{data=model.Question}
// @Router /api/admin/questions/{id} [put]
func (c *AdminController) UpdateQuestion(ctx *gin.Context) {
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q, err := c.AdminService.UpdateQuestion(ctx.Param("id"), req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/admin/questions/{id} [delete]
func (c *AdminController) DeleteQuestion(ctx *gin.Context) {
	if err := c.AdminService.DeleteQuestion(ctx.Param("id")); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListTests godoc
// @Summary 试卷列表（含下架）
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param categoryId query int false "分类ID"
// @Param search query string false "标题关键字"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]repository.TestListRow}}
// @Router /api/admin/tests [get]
func (c *AdminController) ListTests(ctx *gin.Context) {
	page, limit := util.PageParams(ctx)
	filter := repository.TestFilter{
		CategoryID: util.MustParseUint(ctx.Query("categoryId")),
		Search:     ctx.Query("search"),
		Page:       page,
		Limit:      limit,
	}
	tests, total, err := c.AdminService.ListTests(filter)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Page(ctx, tests, total, page, limit)
}

// GetTest godoc
// @Summary 试卷详情（含答案）
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response{data=model.Test}
// @Router /api/admin/tests/{id} [get]
func (c *AdminController) GetTest(ctx *gin.Context) {
	t, err := c.AdminService.GetTest(ctx.Param("id"))
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, t)
}

// CreateTest godoc
// @Summary 创建试卷
// @Description timeLimit 单位为秒，price 为 0 表示免费
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.TestRequest true "试卷"
// @Success 201 {object} util.Response{data=model.Test}
// @Failure 400 {object} util.Response "题目不存在或价格非法"
// @Router /api/admin/tests [post]
func (c *AdminController) CreateTest(ctx *gin.Context) {
	var req service.TestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	t, err := c.AdminService.CreateTest(req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Created(ctx, t)
}

// UpdateTest godoc
// @Summary 更新试卷
// @Description questionIds 不传时保留原题目
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Param body body service.TestRequest true "试卷"
// @Success 200 {object} util.Response{data=model.Test}
// @Router /api/admin/tests/{id} [put]
func (c *AdminController) UpdateTest(ctx *gin.Context) {
	var req service.TestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	t, err := c.AdminService.UpdateTest(ctx.Param("id"), req)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, t)
}

// SetTestQuestions godoc
// @Summary 设置试卷题目与顺序
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Param body body SetQuestionsRequest true "题目ID，按顺序"
// @Success 200 {object} util.Response{data=model.Test}
// @Router /api/admin/tests/{id}/questions [put]
func (c *AdminController) SetTestQuestions(ctx *gin.Context) {
	var req SetQuestionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	t, err := c.AdminService.SetTestQuestions(ctx.Param("id"), req.QuestionIDs)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, t)
}

// SetTestActive godoc
// @Summary 上架/下架试卷
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Param body body SetActiveRequest true "是否上架"
// @Success 200 {object} util.Response
// @Router /api/admin/tests/{id}/active [patch]
func (c *AdminController) SetTestActive(ctx *gin.Context) {
	var req SetActiveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.AdminService.SetTestActive(ctx.Param("id"), *req.IsActive); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": ctx.Param("id"), "isActive": *req.IsActive})
}

// DeleteTest godoc
// @Summary 删除试卷
// @Description 历史答题记录保留
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/admin/tests/{id} [delete]
func (c *AdminController) DeleteTest(ctx *gin.Context) {
	if err := c.AdminService.DeleteTest(ctx.Param("id")); err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadMedia godoc
// @Summary 上传题目图片或视频
// @Description 视频会额外生成封面图
// @Tags 管理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "图片或视频"
// @Success 201 {object} util.Response{data=service.MediaUpload}
// @Failure 400 {object} util.Response "文件类型或大小不符合要求"
// @Router /api/admin/media [post]
func (c *AdminController) UploadMedia(ctx *gin.Context) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "请选择要上传的文件")
		return
	}
	media, err := c.StorageService.UploadMedia(ctx.Request.Context(), fh)
	if err != nil {
		handleServiceError(ctx, err)
		return
	}
	util.Created(ctx, media)
}
