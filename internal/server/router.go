package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/revisionpro/backend/internal/metrics"
	"github.com/revisionpro/backend/internal/study"
)

var errMissingStudyService = errors.New("study service dependency required")

// Dependencies carries everything the HTTP layer needs.
type Dependencies struct {
	StudyService   *study.Service
	Logger         *zap.Logger
	AllowedOrigins []string
	RecommendLimit int
}

// NewHTTPHandler wires the REST surface: hierarchy CRUD, revision recording,
// dashboard stats, recommendations, health and metrics.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.StudyService == nil {
		return nil, errMissingStudyService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	allowedOrigins := deps.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	recommendLimit := deps.RecommendLimit
	if recommendLimit <= 0 {
		recommendLimit = study.DefaultRecommendLimit
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		studyService:   deps.StudyService,
		logger:         logger,
		recommendLimit: recommendLimit,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api")
	api.POST("/subjects", handler.handleCreateSubject)
	api.GET("/subjects", handler.handleListSubjects)
	api.DELETE("/subjects/:id", handler.handleDeleteSubject)
	api.POST("/topics", handler.handleCreateTopic)
	api.GET("/topics", handler.handleListTopics)
	api.DELETE("/topics/:id", handler.handleDeleteTopic)
	api.POST("/subtopics", handler.handleCreateSubtopic)
	api.GET("/subtopics", handler.handleListSubtopics)
	api.PUT("/subtopics/:id", handler.handleUpdateSubtopic)
	api.DELETE("/subtopics/:id", handler.handleDeleteSubtopic)
	api.POST("/revisions", handler.handleRecordRevision)
	api.GET("/revisions/:subtopicId", handler.handleListRevisions)
	api.GET("/dashboard", handler.handleDashboard)
	api.GET("/recommendations", handler.handleRecommendations)

	return router, nil
}

type httpHandler struct {
	studyService   *study.Service
	logger         *zap.Logger
	recommendLimit int
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createSubjectPayload struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *httpHandler) handleCreateSubject(c *gin.Context) {
	var request createSubjectPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	subject, err := h.studyService.CreateSubject(c.Request.Context(), request.Name, request.Description)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

func (h *httpHandler) handleListSubjects(c *gin.Context) {
	subjects, err := h.studyService.ListSubjects(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if subjects == nil {
		subjects = []study.Subject{}
	}
	c.JSON(http.StatusOK, subjects)
}

func (h *httpHandler) handleDeleteSubject(c *gin.Context) {
	if err := h.studyService.DeleteSubject(c.Request.Context(), c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subject deleted successfully"})
}

type createTopicPayload struct {
	SubjectID   string `json:"subject_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *httpHandler) handleCreateTopic(c *gin.Context) {
	var request createTopicPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	topic, err := h.studyService.CreateTopic(c.Request.Context(), request.SubjectID, request.Name, request.Description)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}

func (h *httpHandler) handleListTopics(c *gin.Context) {
	topics, err := h.studyService.ListTopics(c.Request.Context(), c.Query("subject_id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if topics == nil {
		topics = []study.Topic{}
	}
	c.JSON(http.StatusOK, topics)
}

func (h *httpHandler) handleDeleteTopic(c *gin.Context) {
	if err := h.studyService.DeleteTopic(c.Request.Context(), c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Topic deleted successfully"})
}

type createSubtopicPayload struct {
	TopicID     string `json:"topic_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
}

func (h *httpHandler) handleCreateSubtopic(c *gin.Context) {
	var request createSubtopicPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	subtopic, err := h.studyService.CreateSubtopic(c.Request.Context(),
		request.TopicID, request.Name, request.Description, request.Difficulty)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, subtopic)
}

func (h *httpHandler) handleListSubtopics(c *gin.Context) {
	subtopics, err := h.studyService.ListSubtopics(c.Request.Context(), c.Query("topic_id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if subtopics == nil {
		subtopics = []study.Subtopic{}
	}
	c.JSON(http.StatusOK, subtopics)
}

type updateSubtopicPayload struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Difficulty  *string `json:"difficulty"`
	Notes       *string `json:"notes"`
}

func (h *httpHandler) handleUpdateSubtopic(c *gin.Context) {
	var request updateSubtopicPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	subtopic, err := h.studyService.UpdateSubtopic(c.Request.Context(), c.Param("id"), study.UpdateSubtopicInput{
		Name:        request.Name,
		Description: request.Description,
		Difficulty:  request.Difficulty,
		Notes:       request.Notes,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, subtopic)
}

func (h *httpHandler) handleDeleteSubtopic(c *gin.Context) {
	if err := h.studyService.DeleteSubtopic(c.Request.Context(), c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subtopic deleted successfully"})
}

type recordRevisionPayload struct {
	SubtopicID  string `json:"subtopic_id" binding:"required"`
	Performance string `json:"performance" binding:"required"`
	Notes       string `json:"notes"`
}

func (h *httpHandler) handleRecordRevision(c *gin.Context) {
	var request recordRevisionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	record, err := h.studyService.RecordRevision(c.Request.Context(),
		request.SubtopicID, request.Performance, request.Notes)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	metrics.RecordRevision(string(record.Performance))
	c.JSON(http.StatusOK, record)
}

func (h *httpHandler) handleListRevisions(c *gin.Context) {
	records, err := h.studyService.ListRevisions(c.Request.Context(), c.Param("subtopicId"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if records == nil {
		records = []study.RevisionRecord{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *httpHandler) handleDashboard(c *gin.Context) {
	stats, err := h.studyService.DashboardStats(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleRecommendations always answers 200 with a list; pipeline failures
// degrade to an empty list inside the service.
func (h *httpHandler) handleRecommendations(c *gin.Context) {
	limit := h.recommendLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}

	result := h.studyService.Recommend(c.Request.Context(), limit)
	metrics.RecordRecommendations(result.Degraded)
	c.JSON(http.StatusOK, result.Items)
}

func (h *httpHandler) writeServiceError(c *gin.Context, err error) {
	code := "internal_error"
	var serviceErr *study.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}

	switch {
	case errors.Is(err, study.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": code})
	case errors.Is(err, study.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": code})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": code})
	}
}
