package routes

import (
	"net/http"

	"notebook-rag-platform/internal/ai"
	"notebook-rag-platform/middleware"
	"notebook-rag-platform/services"
	"notebook-rag-platform/utils"

	"github.com/gin-gonic/gin"
)

func SetupSearchRoutes(router *gin.Engine, retriever *services.RetrieverService, answers *ai.AnswerGenerator, authMiddleware *middleware.AuthMiddleware) {
	authed := router.Group("/notebooks/:id")
	authed.Use(authMiddleware.RequireAuth())

	authed.POST("/search", func(c *gin.Context) {
		var req struct {
			Query string `json:"query"`
			TopK  int    `json:"top_k"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		results, err := retriever.Search(c.Request.Context(), req.Query, c.Param("id"), middleware.GetOwnerID(c), req.TopK)
		if err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	})

	authed.POST("/ask", func(c *gin.Context) {
		var req struct {
			Question string `json:"question"`
			TopK     int    `json:"top_k"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		results, err := retriever.Search(c.Request.Context(), req.Question, c.Param("id"), middleware.GetOwnerID(c), req.TopK)
		if err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}

		answer, err := answers.Answer(c.Request.Context(), req.Question, services.FormatContext(results))
		if err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"answer":  answer,
			"results": results,
		})
	})
}
