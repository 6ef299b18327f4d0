package routes

import (
	"net/http"
	"time"

	"notebook-rag-platform/internal/database"
	"notebook-rag-platform/internal/queue"
	"notebook-rag-platform/middleware"
	"notebook-rag-platform/models"
	"notebook-rag-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func SetupNotebookRoutes(router *gin.Engine, store *database.MongoStore, tasks *asynq.Client, authMiddleware *middleware.AuthMiddleware) {
	notebooks := router.Group("/notebooks")
	notebooks.Use(authMiddleware.RequireAuth())

	notebooks.POST("", func(c *gin.Context) {
		var req struct {
			Title string `json:"title" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		now := time.Now()
		nb := &models.Notebook{
			ID:        uuid.NewString(),
			OwnerID:   middleware.GetOwnerID(c),
			Title:     req.Title,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.CreateNotebook(c.Request.Context(), nb); err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}
		c.JSON(http.StatusCreated, nb)
	})

	notebooks.GET("", func(c *gin.Context) {
		list, err := store.ListNotebooks(c.Request.Context(), middleware.GetOwnerID(c))
		if err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notebooks": list})
	})

	// Deleting a notebook cascades: every source under it is deleted and
	// its chunks/embeddings deindexed.
	notebooks.DELETE("/:id", func(c *gin.Context) {
		ownerID := middleware.GetOwnerID(c)
		notebookID := c.Param("id")
		ctx := c.Request.Context()

		if _, err := store.GetNotebook(ctx, notebookID, ownerID); err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}

		sources, err := store.ListSourcesByNotebook(ctx, notebookID, ownerID)
		if err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}
		for _, source := range sources {
			if err := store.DeleteSource(ctx, source.ID, ownerID); err != nil {
				utils.RespondWithCoreError(c, err)
				return
			}
			task, err := queue.NewDeindexSourceTask(source.ID, ownerID)
			if err == nil {
				_, err = tasks.Enqueue(task)
			}
			if err != nil {
				middleware.RequestLogger(c).Error("failed to enqueue deindex", "source_id", source.ID, "error", err)
			}
		}

		if err := store.DeleteNotebook(ctx, notebookID, ownerID); err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "notebook deleted", "sources_removed": len(sources)})
	})
}
