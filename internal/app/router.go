package app

import (
	"exam_practice_backend/docs"
	"exam_practice_backend/internal/middleware"
	"exam_practice_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, s *services) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, s)

	// 2. 需要登录的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(s.sessions))
	{
		a.registerUserRoutes(authGroup, c)
		a.registerExamRoutes(authGroup, c)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, s)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, s *services) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)

		auth := public.Group("/auth")
		{
			auth.POST("/register", c.auth.Register)
			auth.POST("/login", c.auth.Login)
			auth.POST("/magic-link", c.auth.RequestMagicLink)
			auth.POST("/magic-link/verify", c.auth.VerifyMagicLink)
		}

		// 题库浏览：游客可访问，登录用户额外返回购买状态
		catalog := public.Group("")
		catalog.Use(middleware.TryAuthMiddleware(s.sessions))
		{
			catalog.GET("/categories", c.catalog.ListCategories)
			catalog.GET("/tests", c.catalog.ListTests)
			catalog.GET("/tests/:id", c.catalog.GetTest)
		}

		// 支付回调由 Midtrans 服务器调用，靠签名校验
		public.POST("/payments/midtrans/notification", c.purchase.MidtransNotification)
	}
}

func (a *App) registerUserRoutes(rg *gin.RouterGroup, c *controllers) {
	auth := rg.Group("/auth")
	{
		auth.GET("/me", c.auth.Me)
		auth.POST("/logout", c.auth.Logout)
		auth.POST("/refresh", c.auth.Refresh)
	}

	rg.GET("/profile", c.user.GetProfile)
	rg.PUT("/profile", c.user.UpdateProfile)

	rg.POST("/tests/:id/purchase", c.purchase.Checkout)
	rg.GET("/purchases", c.purchase.ListMine)

	dashboard := rg.Group("/dashboard")
	{
		dashboard.GET("/analytics", c.dashboard.GetAnalytics)
		dashboard.GET("/performance", c.dashboard.GetPerformance)
		dashboard.GET("/history", c.dashboard.GetHistory)
	}
}

func (a *App) registerExamRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.POST("/tests/:id/sessions", c.exam.StartSession)

	sessions := rg.Group("/sessions/:id")
	{
		sessions.GET("", c.exam.GetSession)
		sessions.PUT("/navigate", c.exam.Navigate)
		sessions.PUT("/answers/:questionId", c.exam.RecordAnswer)
		sessions.POST("/questions/:questionId/flag", c.exam.ToggleFlag)
		sessions.POST("/finish", c.exam.FinishSession)
		sessions.GET("/review", c.exam.ReviewSession)
		sessions.POST("/retry", c.exam.RetrySession)
		// 浏览器 WebSocket 无法设置请求头，令牌走 ?token=
		sessions.GET("/ws", c.exam.TimerSocket)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, s *services) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(s.sessions), middleware.AdminMiddleware())
	{
		admin.POST("/promote", c.admin.Promote)
		admin.POST("/media", c.admin.UploadMedia)

		admin.GET("/categories", c.admin.ListCategories)
		admin.POST("/categories", c.admin.CreateCategory)
		admin.PUT("/categories/:id", c.admin.UpdateCategory)
		admin.DELETE("/categories/:id", c.admin.DeleteCategory)

		admin.GET("/questions", c.admin.ListQuestions)
		admin.GET("/questions/:id", c.admin.GetQuestion)
		admin.POST("/questions", c.admin.CreateQuestion)
		admin.PUT("/questions/:id", c.admin.UpdateQuestion)
		admin.DELETE("/questions/:id", c.admin.DeleteQuestion)

		admin.GET("/tests", c.admin.ListTests)
		admin.GET("/tests/:id", c.admin.GetTest)
		admin.POST("/tests", c.admin.CreateTest)
		admin.PUT("/tests/:id", c.admin.UpdateTest)
		admin.PUT("/tests/:id/questions", c.admin.SetTestQuestions)
		admin.PATCH("/tests/:id/active", c.admin.SetTestActive)
		admin.DELETE("/tests/:id", c.admin.DeleteTest)
	}
}
