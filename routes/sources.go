package routes

import (
	"io"
	"net/http"
	"time"

	"notebook-rag-platform/internal/config"
	"notebook-rag-platform/internal/database"
	"notebook-rag-platform/internal/queue"
	"notebook-rag-platform/middleware"
	"notebook-rag-platform/models"
	"notebook-rag-platform/services"
	"notebook-rag-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func SetupSourceRoutes(router *gin.Engine, cfg *config.Config, store *database.MongoStore, tasks *asynq.Client, extractor *services.SourceExtractor, authMiddleware *middleware.AuthMiddleware) {
	authed := router.Group("/")
	authed.Use(authMiddleware.RequireAuth())

	// Attach a text source. Multipart uploads go through the extractor;
	// JSON bodies carry the content directly.
	authed.POST("/notebooks/:id/sources", func(c *gin.Context) {
		ownerID := middleware.GetOwnerID(c)
		notebookID := c.Param("id")
		ctx := c.Request.Context()

		if _, err := store.GetNotebook(ctx, notebookID, ownerID); err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}

		var filename, content string
		if file, err := c.FormFile("file"); err == nil {
			if file.Size > cfg.MaxFileSize {
				utils.RespondWithBadRequest(c, "File too large", gin.H{"max_bytes": cfg.MaxFileSize})
				return
			}
			f, err := file.Open()
			if err != nil {
				utils.RespondWithBadRequest(c, "Unreadable upload", nil)
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				utils.RespondWithBadRequest(c, "Unreadable upload", nil)
				return
			}
			filename = file.Filename
			content, err = extractor.Extract(filename, data)
			if err != nil {
				utils.RespondWithCoreError(c, err)
				return
			}
		} else {
			var req struct {
				Filename string `json:"filename"`
				Content  string `json:"content" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
				return
			}
			filename = req.Filename
			content = req.Content
		}

		now := time.Now()
		source := &models.Source{
			ID:         uuid.NewString(),
			OwnerID:    ownerID,
			NotebookID: notebookID,
			Filename:   filename,
			Content:    content,
			Status:     models.SourceStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := store.CreateSource(ctx, source); err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}

		if err := enqueueSourceTask(tasks, queue.NewIndexSourceTask, source.ID, ownerID); err != nil {
			middleware.RequestLogger(c).Error("failed to enqueue index", "source_id", source.ID, "error", err)
		}

		c.JSON(http.StatusCreated, source)
	})

	authed.GET("/notebooks/:id/sources", func(c *gin.Context) {
		sources, err := store.ListSourcesByNotebook(c.Request.Context(), c.Param("id"), middleware.GetOwnerID(c))
		if err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sources": sources})
	})

	// Content replacement. Triggers a wholesale chunk-set swap, never a
	// partial merge.
	authed.PUT("/sources/:id", func(c *gin.Context) {
		ownerID := middleware.GetOwnerID(c)
		sourceID := c.Param("id")

		var req struct {
			Content string `json:"content" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		if err := store.UpdateSourceContent(c.Request.Context(), sourceID, ownerID, req.Content); err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}

		if err := enqueueSourceTask(tasks, queue.NewReindexSourceTask, sourceID, ownerID); err != nil {
			middleware.RequestLogger(c).Error("failed to enqueue reindex", "source_id", sourceID, "error", err)
		}

		c.JSON(http.StatusOK, gin.H{"message": "source updated, reindexing"})
	})

	authed.DELETE("/sources/:id", func(c *gin.Context) {
		ownerID := middleware.GetOwnerID(c)
		sourceID := c.Param("id")
		ctx := c.Request.Context()

		if _, err := store.GetSource(ctx, sourceID, ownerID); err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}
		if err := store.DeleteSource(ctx, sourceID, ownerID); err != nil {
			utils.RespondWithCoreError(c, err)
			return
		}

		if err := enqueueSourceTask(tasks, queue.NewDeindexSourceTask, sourceID, ownerID); err != nil {
			middleware.RequestLogger(c).Error("failed to enqueue deindex", "source_id", sourceID, "error", err)
		}

		c.JSON(http.StatusOK, gin.H{"message": "source deleted"})
	})
}

func enqueueSourceTask(tasks *asynq.Client, create func(string, string) (*asynq.Task, error), sourceID, ownerID string) error {
	task, err := create(sourceID, ownerID)
	if err != nil {
		return err
	}
	_, err = tasks.Enqueue(task)
	return err
}
