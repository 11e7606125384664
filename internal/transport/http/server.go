package http

import (
	"github.com/gin-gonic/gin"

	"policychat/internal/ai"
	appsvc "policychat/internal/app"
	"policychat/internal/bootstrap"
	"policychat/internal/repository"
	"policychat/internal/transport/http/handler"
	"policychat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	docRepo := repository.NewDocumentRepository(app.MySQL)
	segRepo := repository.NewSegmentRepository(app.MySQL)
	queryRepo := repository.NewSearchQueryRepository(app.MySQL)

	docService := appsvc.NewDocumentService(
		docRepo,
		segRepo,
		app.Publisher,
		app.Config.Ingest.UploadDir,
		app.Config.Ingest.MaxUploadMB,
	)
	searchService := appsvc.NewSearchService(
		segRepo,
		app.Embedder,
		app.Config.Retrieval.DefaultLimit,
		app.Config.Retrieval.MaxLimit,
		app.Config.Retrieval.MaxQueryLength,
	)
	llmClient := ai.NewClient()
	answerService := appsvc.NewAnswerService(
		searchService,
		docRepo,
		app.Memory,
		llmClient,
		ai.ChatConfig{
			BaseURL: app.Config.LLM.BaseURL,
			APIKey:  app.Config.LLM.APIKey,
			Model:   app.Config.LLM.Model,
		},
		appsvc.AnswerOptions{
			Provider:         app.Config.LLM.Provider,
			RetrievalLimit:   app.Config.Retrieval.DefaultLimit,
			MinSimilarity:    app.Config.Retrieval.MinSimilarity,
			MaxContextChars:  app.Config.Answer.MaxContextChars,
			MaxQuestionChars: app.Config.Answer.MaxQuestionLength,
			MaxAnswerChars:   app.Config.Answer.MaxAnswerLength,
		},
	)

	docHandler := handler.NewDocumentHandler(docService)
	searchHandler := handler.NewSearchHandler(searchService, queryRepo, app.Analytics)
	chatHandler := handler.NewChatHandler(answerService, app.Memory, queryRepo, app.Analytics)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthTenant(app.Config.Auth.JWTSecret))

	docGroup := v1.Group("/documents")
	docGroup.POST("", docHandler.Upload)
	docGroup.GET("", docHandler.List)
	docGroup.GET("/:id", docHandler.Get)
	docGroup.PATCH("/:id/active", docHandler.SetActive)
	docGroup.POST("/:id/reprocess", docHandler.Reprocess)
	docGroup.DELETE("/:id", docHandler.Delete)

	v1.POST("/search", searchHandler.Search)
	v1.GET("/segments/:id/similar", searchHandler.Similar)

	chatGroup := v1.Group("/chat")
	chatGroup.POST("", chatHandler.Ask)
	chatGroup.DELETE("/sessions/:id", chatHandler.ClearSession)
	chatGroup.GET("/memory/stats", chatHandler.MemoryStats)

	return router
}
