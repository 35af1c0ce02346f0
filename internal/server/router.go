package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stackit-hq/stackit/backend/internal/answers"
	"github.com/stackit-hq/stackit/backend/internal/apperr"
	"github.com/stackit-hq/stackit/backend/internal/auth"
	"github.com/stackit-hq/stackit/backend/internal/notifications"
	"github.com/stackit-hq/stackit/backend/internal/questions"
	"github.com/stackit-hq/stackit/backend/internal/users"
	"github.com/stackit-hq/stackit/backend/internal/votes"
	"go.uber.org/zap"
)

const principalContextKey = "stackit_principal"

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingUserService   = errors.New("user service dependency required")
	errMissingQuestionSvc   = errors.New("question service dependency required")
	errMissingAnswerSvc     = errors.New("answer service dependency required")
	errMissingVoteLedger    = errors.New("vote ledger dependency required")
	errMissingNotifications = errors.New("notification service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates bearer tokens for forum principals.
type TokenManager interface {
	IssueToken(principal auth.Principal) (string, int64, error)
	ValidateToken(token string) (auth.Principal, error)
}

// Dependencies wires the domain services into the HTTP layer.
type Dependencies struct {
	TokenManager  TokenManager
	Users         *users.Service
	Questions     *questions.Service
	Answers       *answers.Service
	Votes         *votes.Ledger
	Notifications *notifications.Service
	Logger        *zap.Logger
}

// NewHTTPHandler builds the gin router serving the forum API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if deps.Questions == nil {
		return nil, errMissingQuestionSvc
	}
	if deps.Answers == nil {
		return nil, errMissingAnswerSvc
	}
	if deps.Votes == nil {
		return nil, errMissingVoteLedger
	}
	if deps.Notifications == nil {
		return nil, errMissingNotifications
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:        deps.TokenManager,
		users:         deps.Users,
		questions:     deps.Questions,
		answers:       deps.Answers,
		votes:         deps.Votes,
		notifications: deps.Notifications,
		logger:        logger,
	}

	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/login", handler.handleLogin)

	router.GET("/questions", handler.handleListQuestions)
	router.GET("/questions/:id", handler.handleGetQuestion)
	router.PATCH("/questions/:id/views", handler.handleIncrementViews)
	router.GET("/questions/:id/related", handler.handleRelatedQuestions)
	router.GET("/answers/question/:questionId", handler.handleListAnswers)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/questions", handler.handleCreateQuestion)
	protected.POST("/answers", handler.handleCreateAnswer)
	protected.PATCH("/answers/:id/accept", handler.handleAcceptAnswer)
	protected.POST("/votes", handler.handleCastVote)
	protected.GET("/votes/:answerId/user", handler.handleUserVote)
	protected.GET("/notifications", handler.handleListNotifications)
	protected.PATCH("/notifications/:id/read", handler.handleMarkNotificationRead)
	protected.PATCH("/notifications", handler.handleMarkAllNotificationsRead)

	return router, nil
}

type httpHandler struct {
	tokens        TokenManager
	users         *users.Service
	questions     *questions.Service
	answers       *answers.Service
	votes         *votes.Ledger
	notifications *notifications.Service
	logger        *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": errInvalidAuthorization.Error()})
		return
	}
	principal, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}
	c.Set(principalContextKey, principal)
	c.Next()
}

func currentPrincipal(c *gin.Context) (auth.Principal, bool) {
	value, exists := c.Get(principalContextKey)
	if !exists {
		return auth.Principal{}, false
	}
	principal, ok := value.(auth.Principal)
	return principal, ok
}

// respondError maps the error taxonomy onto HTTP statuses. Business-rule
// violations carry their message to the client; anything unclassified is
// logged and returned as an opaque server error.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"message": apperr.MessageOf(err)})
	case apperr.KindForbidden:
		c.JSON(http.StatusForbidden, gin.H{"message": apperr.MessageOf(err)})
	case apperr.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"message": apperr.MessageOf(err)})
	case apperr.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"message": apperr.MessageOf(err)})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
	}
}
