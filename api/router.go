package api

import (
	"github.com/fyerfyer/doc-audit-system/api/handler"
	"github.com/fyerfyer/doc-audit-system/api/middleware"
	"github.com/fyerfyer/doc-audit-system/api/model"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(docHandler *handler.DocumentHandler) *gin.Engine {
	// 注册自定义校验规则
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = model.RegisterCustomValidators(v)
	}

	router := gin.New()

	// 应用全局中间件
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
		router.Use(middleware.ResponseLogger())
	}

	// 创建API分组
	api := router.Group("/api")
	{
		// 文档管理API
		docGroup := api.Group("/documents")
		{
			// 上传文档 - POST /api/documents
			docGroup.POST("", docHandler.UploadDocument)

			// 批量上传文档 - POST /api/documents/batch
			docGroup.POST("/batch", docHandler.UploadDocumentBatch)

			// 获取文档状态 - GET /api/documents/:id/status
			docGroup.GET("/:id/status", docHandler.GetDocumentStatus)

			// 获取文档分块 - GET /api/documents/:id/chunks
			docGroup.GET("/:id/chunks", docHandler.GetDocumentChunks)

			// 获取文档列表 - GET /api/documents
			docGroup.GET("", docHandler.ListDocuments)

			// 删除文档 - DELETE /api/documents/:id
			docGroup.DELETE("/:id", docHandler.DeleteDocument)
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
// 如果需要支持跨域请求，可以启用此中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
