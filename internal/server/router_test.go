package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stackit-hq/stackit/backend/internal/answers"
	"github.com/stackit-hq/stackit/backend/internal/auth"
	"github.com/stackit-hq/stackit/backend/internal/notifications"
	"github.com/stackit-hq/stackit/backend/internal/questions"
	"github.com/stackit-hq/stackit/backend/internal/users"
	"github.com/stackit-hq/stackit/backend/internal/votes"
	"gorm.io/gorm"
)

type seqIDGenerator struct {
	prefix string
	next   int
}

func (g *seqIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}

type testEnv struct {
	handler http.Handler
	db      *gorm.DB
	tokens  *auth.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&users.User{},
		&questions.Question{},
		&questions.QuestionTag{},
		&answers.Answer{},
		&votes.Vote{},
		&notifications.Notification{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	idProvider := &seqIDGenerator{prefix: "id"}
	tokens := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "stackit-auth",
		Audience:      "stackit-api",
	})

	userService, err := users.NewService(users.ServiceConfig{Database: db, IDProvider: idProvider})
	if err != nil {
		t.Fatalf("failed to build user service: %v", err)
	}
	questionService, err := questions.NewService(questions.ServiceConfig{Database: db, IDProvider: idProvider})
	if err != nil {
		t.Fatalf("failed to build question service: %v", err)
	}
	notificationService, err := notifications.NewService(notifications.ServiceConfig{Database: db, IDProvider: idProvider})
	if err != nil {
		t.Fatalf("failed to build notification service: %v", err)
	}
	answerService, err := answers.NewService(answers.ServiceConfig{
		Database: db, IDProvider: idProvider, Notifier: notificationService,
	})
	if err != nil {
		t.Fatalf("failed to build answer service: %v", err)
	}
	voteLedger, err := votes.NewLedger(votes.LedgerConfig{Database: db, IDProvider: idProvider, MinAnswers: 2})
	if err != nil {
		t.Fatalf("failed to build vote ledger: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		TokenManager:  tokens,
		Users:         userService,
		Questions:     questionService,
		Answers:       answerService,
		Votes:         voteLedger,
		Notifications: notificationService,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return &testEnv{handler: handler, db: db, tokens: tokens}
}

func (env *testEnv) seedUser(t *testing.T, id string, answerCount int64) string {
	t.Helper()
	user := users.User{
		ID:           id,
		Username:     "user-" + id,
		Email:        id + "@example.com",
		PasswordHash: "x",
		Role:         users.RoleUser,
		AnswerCount:  answerCount,
	}
	if err := env.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	token, _, err := env.tokens.IssueToken(auth.Principal{UserID: id, Username: user.Username, Role: "user"})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func (env *testEnv) seedQuestion(t *testing.T, id, authorID string) {
	t.Helper()
	question := questions.Question{
		ID:          id,
		Title:       "Seeded question",
		Description: "seeded description",
		AuthorID:    authorID,
		Author:      "user-" + authorID,
	}
	if err := env.db.Create(&question).Error; err != nil {
		t.Fatalf("failed to seed question: %v", err)
	}
}

func (env *testEnv) seedAnswer(t *testing.T, id, questionID, authorID string) {
	t.Helper()
	answer := answers.Answer{
		ID:         id,
		QuestionID: questionID,
		Content:    "seeded answer",
		AuthorID:   authorID,
		Author:     "user-" + authorID,
	}
	if err := env.db.Create(&answer).Error; err != nil {
		t.Fatalf("failed to seed answer: %v", err)
	}
}

func (env *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body != "" {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	} else {
		request = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeMessage(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return body.Message
}

func TestProtectedRoutesRejectMissingBearer(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(t, http.MethodPost, "/votes", "", `{"answerId":"a","voteType":"up"}`)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestCastVoteBelowThresholdReturnsForbidden(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "voter", 1)
	env.seedQuestion(t, "question-1", "asker")
	env.seedAnswer(t, "answer-1", "question-1", "answerer")

	recorder := env.do(t, http.MethodPost, "/votes", token, `{"answerId":"answer-1","voteType":"up"}`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if message := decodeMessage(t, recorder); !strings.Contains(message, "insufficient contribution") {
		t.Fatalf("expected insufficient contribution message, got %q", message)
	}
}

func TestCastVoteRecordsAndReturnsTotal(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "voter", 2)
	env.seedQuestion(t, "question-1", "asker")
	env.seedAnswer(t, "answer-1", "question-1", "answerer")

	recorder := env.do(t, http.MethodPost, "/votes", token, `{"answerId":"answer-1","voteType":"up"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var body struct {
		Message string `json:"message"`
		Votes   int64  `json:"votes"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Votes != 1 {
		t.Fatalf("expected vote total 1, got %d", body.Votes)
	}
}

func TestCastVoteMissingAnswerReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "voter", 2)

	recorder := env.do(t, http.MethodPost, "/votes", token, `{"answerId":"answer-missing","voteType":"up"}`)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestUserVoteReturnsNullBeforeVoting(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "voter", 2)
	env.seedQuestion(t, "question-1", "asker")
	env.seedAnswer(t, "answer-1", "question-1", "answerer")

	recorder := env.do(t, http.MethodGet, "/votes/answer-1/user", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if body := recorder.Body.String(); !strings.Contains(body, `"voteType":null`) {
		t.Fatalf("expected null vote type, got %s", body)
	}
}

func TestAcceptAnswerForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "asker", 0)
	token := env.seedUser(t, "stranger", 0)
	env.seedQuestion(t, "question-1", "asker")
	env.seedAnswer(t, "answer-1", "question-1", "answerer")

	recorder := env.do(t, http.MethodPatch, "/answers/answer-1/accept", token, "")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestAcceptAnswerMissingReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "asker", 0)

	recorder := env.do(t, http.MethodPatch, "/answers/answer-missing/accept", token, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestAcceptAnswerByOwnerUpdatesState(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "asker", 0)
	env.seedQuestion(t, "question-1", "asker")
	env.seedAnswer(t, "answer-1", "question-1", "answerer")

	recorder := env.do(t, http.MethodPatch, "/answers/answer-1/accept", token, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var stored answers.Answer
	if err := env.db.Take(&stored, "id = ?", "answer-1").Error; err != nil {
		t.Fatalf("failed to load answer: %v", err)
	}
	if !stored.IsAccepted {
		t.Fatalf("expected answer to be accepted")
	}
}

func TestListQuestionsIsPublic(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestion(t, "question-1", "asker")

	recorder := env.do(t, http.MethodGet, "/questions", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var payload []map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload) != 1 {
		t.Fatalf("expected one question, got %d", len(payload))
	}
	if _, ok := payload[0]["answerCount"]; !ok {
		t.Fatalf("expected answerCount in projection, got %v", payload[0])
	}
}

func TestRegisterLoginAndUseToken(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(t, http.MethodPost, "/auth/register", "", `{"username":"alice","email":"alice@example.com","password":"hunter22"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = env.do(t, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"hunter22"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var body struct {
		Token string `json:"token"`
		User  struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token == "" {
		t.Fatalf("expected a token")
	}

	recorder = env.do(t, http.MethodPost, "/questions", body.Token, `{"title":"First question","description":"body","tags":["Go","go"]}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if !strings.Contains(recorder.Body.String(), `"author":"alice"`) {
		t.Fatalf("expected author snapshot in response, got %s", recorder.Body.String())
	}
}

func TestLoginWithWrongPasswordReturnsForbidden(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(t, http.MethodPost, "/auth/register", "", `{"username":"alice","email":"alice@example.com","password":"hunter22"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", recorder.Code)
	}

	recorder = env.do(t, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"wrong"}`)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
}

func TestAnswerFlowCreatesNotificationAndCounts(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "asker", 0)
	answererToken := env.seedUser(t, "answerer", 0)
	env.seedQuestion(t, "question-1", "asker")

	recorder := env.do(t, http.MethodPost, "/answers", answererToken, `{"questionId":"question-1","content":"the answer"}`)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	askerToken := func() string {
		token, _, err := env.tokens.IssueToken(auth.Principal{UserID: "asker", Username: "user-asker", Role: "user"})
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}
		return token
	}()

	recorder = env.do(t, http.MethodGet, "/notifications", askerToken, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload []map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload) != 1 {
		t.Fatalf("expected one notification, got %d", len(payload))
	}
	if payload[0]["type"] != "answer" {
		t.Fatalf("expected answer notification, got %v", payload[0]["type"])
	}
}

func TestMarkNotificationReadScopedToRecipient(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "owner", 0)
	strangerToken := env.seedUser(t, "stranger", 0)
	notification := notifications.Notification{
		ID:      "n-1",
		UserID:  "owner",
		Type:    notifications.TypeAnswer,
		Message: "m",
	}
	if err := env.db.Create(&notification).Error; err != nil {
		t.Fatalf("failed to seed notification: %v", err)
	}

	recorder := env.do(t, http.MethodPatch, "/notifications/n-1/read", strangerToken, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's notification, got %d", recorder.Code)
	}

	var stored notifications.Notification
	if err := env.db.Take(&stored, "id = ?", "n-1").Error; err != nil {
		t.Fatalf("failed to load notification: %v", err)
	}
	if stored.IsRead {
		t.Fatalf("expected notification to stay unread")
	}
}

func TestViewIncrementIsPublic(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestion(t, "question-1", "asker")

	recorder := env.do(t, http.MethodPatch, "/questions/question-1/views", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var question questions.Question
	if err := env.db.Take(&question, "id = ?", "question-1").Error; err != nil {
		t.Fatalf("failed to load question: %v", err)
	}
	if question.Views != 1 {
		t.Fatalf("expected one view, got %d", question.Views)
	}
}

func TestCORSAllowsBrowserClients(t *testing.T) {
	env := newTestEnv(t)

	request := httptest.NewRequest(http.MethodOptions, "/questions", nil)
	request.Header.Set("Origin", "http://localhost:5173")
	request.Header.Set("Access-Control-Request-Method", http.MethodGet)
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)

	if allow := recorder.Header().Get("Access-Control-Allow-Origin"); allow != "*" {
		t.Fatalf("expected wildcard allow origin, got %q", allow)
	}
}
