package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stackit-hq/stackit/backend/internal/answers"
	"github.com/stackit-hq/stackit/backend/internal/auth"
	"github.com/stackit-hq/stackit/backend/internal/notifications"
	"github.com/stackit-hq/stackit/backend/internal/questions"
	"github.com/stackit-hq/stackit/backend/internal/users"
	"github.com/stackit-hq/stackit/backend/internal/votes"
	"go.uber.org/zap"
)

type registerRequestPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type authResponsePayload struct {
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expires_in"`
	User      userPayload `json:"user"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), users.RegisterInput{
		Username: request.Username,
		Email:    request.Email,
		Password: request.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusCreated, user)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.respondWithToken(c, http.StatusOK, user)
}

func (h *httpHandler) respondWithToken(c *gin.Context, status int, user users.User) {
	token, expiresIn, err := h.tokens.IssueToken(auth.Principal{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
	})
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "server error"})
		return
	}

	c.JSON(status, authResponsePayload{
		Token:     token,
		ExpiresIn: expiresIn,
		User: userPayload{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			Role:      string(user.Role),
			CreatedAt: user.CreatedAt,
		},
	})
}

type questionPayload struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Tags             []string  `json:"tags"`
	AuthorID         string    `json:"authorId"`
	Author           string    `json:"author"`
	AcceptedAnswerID *string   `json:"acceptedAnswerId,omitempty"`
	AnswerCount      int64     `json:"answerCount"`
	Votes            int64     `json:"votes"`
	Views            int64     `json:"views"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func toQuestionPayload(question questions.Question) questionPayload {
	tags := question.Tags
	if tags == nil {
		tags = []string{}
	}
	return questionPayload{
		ID:               question.ID,
		Title:            question.Title,
		Description:      question.Description,
		Tags:             tags,
		AuthorID:         question.AuthorID,
		Author:           question.Author,
		AcceptedAnswerID: question.AcceptedAnswerID,
		AnswerCount:      question.AnswerCount,
		Votes:            question.Votes,
		Views:            question.Views,
		CreatedAt:        question.CreatedAt,
		UpdatedAt:        question.UpdatedAt,
	}
}

func toQuestionPayloads(items []questions.Question) []questionPayload {
	payloads := make([]questionPayload, 0, len(items))
	for _, item := range items {
		payloads = append(payloads, toQuestionPayload(item))
	}
	return payloads
}

type createQuestionPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (h *httpHandler) handleListQuestions(c *gin.Context) {
	filter := questions.Filter{
		Search: c.Query("search"),
		Tag:    c.Query("tag"),
		SortBy: questions.Sort(c.Query("sortBy")),
	}

	results, err := h.questions.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuestionPayloads(results))
}

func (h *httpHandler) handleGetQuestion(c *gin.Context) {
	question, err := h.questions.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuestionPayload(question))
}

func (h *httpHandler) handleCreateQuestion(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	var request createQuestionPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	question, err := h.questions.Create(c.Request.Context(), questions.CreateInput{
		Title:       request.Title,
		Description: request.Description,
		Tags:        request.Tags,
	}, principal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toQuestionPayload(question))
}

func (h *httpHandler) handleIncrementViews(c *gin.Context) {
	if err := h.questions.IncrementViews(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Views incremented"})
}

func (h *httpHandler) handleRelatedQuestions(c *gin.Context) {
	results, err := h.questions.Related(c.Request.Context(), c.Param("id"), questions.DefaultRelatedLimit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuestionPayloads(results))
}

type answerPayload struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"questionId"`
	Content    string    `json:"content"`
	AuthorID   string    `json:"authorId"`
	Author     string    `json:"author"`
	Votes      int64     `json:"votes"`
	IsAccepted bool      `json:"isAccepted"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toAnswerPayload(answer answers.Answer) answerPayload {
	return answerPayload{
		ID:         answer.ID,
		QuestionID: answer.QuestionID,
		Content:    answer.Content,
		AuthorID:   answer.AuthorID,
		Author:     answer.Author,
		Votes:      answer.Votes,
		IsAccepted: answer.IsAccepted,
		CreatedAt:  answer.CreatedAt,
		UpdatedAt:  answer.UpdatedAt,
	}
}

type createAnswerPayload struct {
	QuestionID string `json:"questionId"`
	Content    string `json:"content"`
}

func (h *httpHandler) handleListAnswers(c *gin.Context) {
	results, err := h.answers.ListByQuestion(c.Request.Context(), c.Param("questionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	payloads := make([]answerPayload, 0, len(results))
	for _, answer := range results {
		payloads = append(payloads, toAnswerPayload(answer))
	}
	c.JSON(http.StatusOK, payloads)
}

func (h *httpHandler) handleCreateAnswer(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	var request createAnswerPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	answer, err := h.answers.Create(c.Request.Context(), answers.CreateInput{
		QuestionID: request.QuestionID,
		Content:    request.Content,
	}, principal)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAnswerPayload(answer))
}

func (h *httpHandler) handleAcceptAnswer(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	answer, err := h.answers.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.answers.Accept(c.Request.Context(), answer.QuestionID, answer.ID, principal.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Answer accepted"})
}

type castVotePayload struct {
	AnswerID string `json:"answerId"`
	VoteType string `json:"voteType"`
}

func (h *httpHandler) handleCastVote(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	var request castVotePayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.AnswerID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	total, err := h.votes.Cast(c.Request.Context(), principal.UserID, request.AnswerID, votes.VoteType(request.VoteType))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vote recorded", "votes": total})
}

func (h *httpHandler) handleUserVote(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	voteType, found, err := h.votes.UserVote(c.Request.Context(), principal.UserID, c.Param("answerId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"voteType": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"voteType": string(voteType)})
}

type notificationPayload struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	QuestionID *string   `json:"questionId,omitempty"`
	AnswerID   *string   `json:"answerId,omitempty"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toNotificationPayload(notification notifications.Notification) notificationPayload {
	return notificationPayload{
		ID:         notification.ID,
		UserID:     notification.UserID,
		Type:       string(notification.Type),
		Message:    notification.Message,
		QuestionID: notification.QuestionID,
		AnswerID:   notification.AnswerID,
		IsRead:     notification.IsRead,
		CreatedAt:  notification.CreatedAt,
	}
}

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	results, err := h.notifications.ListByUser(c.Request.Context(), principal.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	payloads := make([]notificationPayload, 0, len(results))
	for _, notification := range results {
		payloads = append(payloads, toNotificationPayload(notification))
	}
	c.JSON(http.StatusOK, payloads)
}

func (h *httpHandler) handleMarkNotificationRead(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), principal.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *httpHandler) handleMarkAllNotificationsRead(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	if err := h.notifications.MarkAllRead(c.Request.Context(), principal.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read"})
}
