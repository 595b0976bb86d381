package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spend-insight-go/internal/middleware"
	"spend-insight-go/internal/model"
	"spend-insight-go/internal/service"
	"spend-insight-go/pkg/log"
)

func init() {
	gin.SetMode(gin.TestMode)
	log.Init("error", "console", "")
}

// fakeQueryService 返回预置的助手消息。
type fakeQueryService struct {
	reply model.Message
}

func (f *fakeQueryService) Ask(context.Context, string, string, string) model.Message {
	return f.reply
}

func (f *fakeQueryService) ReExecute(context.Context, string, string, string) model.Message {
	return f.reply
}

// fakeSessionService 始终报告没有激活会话。
type fakeSessionService struct{}

func (fakeSessionService) Create(context.Context, string, string) (*model.Session, error) {
	return nil, nil
}

func (fakeSessionService) List(context.Context, string, int) []model.Session {
	return []model.Session{}
}

func (fakeSessionService) Switch(context.Context, string, string) (*model.Session, error) {
	return nil, nil
}

func (fakeSessionService) Active(context.Context, string) *model.Session { return nil }

func newChatRouter(reply model.Message) (*gin.Engine, service.ConversationService) {
	conversations := service.NewConversationService()
	h := NewChatHandler(&fakeQueryService{reply: reply}, conversations, fakeSessionService{})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, "default-user")
	})
	r.POST("/api/chat/query", h.Query)
	r.POST("/api/chat/query/reexecute", h.ReExecute)
	r.GET("/api/chat/messages", h.Messages)
	return r, conversations
}

func assistantReply(content string) model.Message {
	return model.Message{
		ID:        "a1",
		Role:      model.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		Results:   model.AbsentResult(),
	}
}

func postJSON(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	return postRaw(r, path, string(raw))
}

func postRaw(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestQuery_AppendsUserAndAssistant(t *testing.T) {
	r, conversations := newChatRouter(assistantReply("here you go"))

	w := postJSON(r, "/api/chat/query", gin.H{"question": "total spend?", "session_id": "s1"})

	assert.Equal(t, http.StatusOK, w.Code)

	timeline := conversations.Timeline("s1")
	require.Len(t, timeline, 2)
	assert.Equal(t, model.RoleUser, timeline[0].Role)
	assert.Equal(t, "total spend?", timeline[0].Content)
	assert.Equal(t, model.RoleAssistant, timeline[1].Role)
	assert.Equal(t, "here you go", timeline[1].Content)
}

func TestQuery_BlankQuestionRejected(t *testing.T) {
	r, conversations := newChatRouter(assistantReply("x"))

	w := postJSON(r, "/api/chat/query", gin.H{"question": "   "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Question is required")
	assert.Empty(t, conversations.Timeline(""))
}

func TestQuery_ConcurrentTurnRejected(t *testing.T) {
	r, conversations := newChatRouter(assistantReply("x"))
	require.True(t, conversations.BeginTurn("s1"))
	defer conversations.EndTurn("s1")

	w := postJSON(r, "/api/chat/query", gin.H{"question": "q", "session_id": "s1"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, conversations.Timeline("s1"))
}

func TestQuery_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    *model.AppError
		status int
	}{
		{"no error", nil, http.StatusOK},
		{"timeout", model.NewAppError(model.KindTimeout, "Request timeout", http.StatusRequestTimeout), http.StatusRequestTimeout},
		{"service unavailable", model.NewAppError(model.KindServiceUnavailable, "AI service is currently unavailable", http.StatusServiceUnavailable), http.StatusServiceUnavailable},
		{"network unavailable", model.NewAppError(model.KindNetworkUnavailable, "Service unavailable", http.StatusServiceUnavailable), http.StatusServiceUnavailable},
		{"upstream transport", model.NewAppError(model.KindUpstream, "Backend error: 502", http.StatusBadGateway), http.StatusInternalServerError},
		{"upstream soft failure", model.NewAppError(model.KindUpstream, "could not translate", 0), http.StatusOK},
		{"unknown", model.NewAppError(model.KindUnknown, "boom", 0), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reply := assistantReply("content")
			reply.Error = tc.err
			r, _ := newChatRouter(reply)

			w := postJSON(r, "/api/chat/query", gin.H{"question": "q", "session_id": "s1"})
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestReExecute_AppendsWithoutRewritingHistory(t *testing.T) {
	r, conversations := newChatRouter(assistantReply("fresh rows"))

	// 预置历史时间线：一对用户/助手消息，助手带历史占位符
	historical := model.Message{
		ID:             "assistant-r1",
		Role:           model.RoleAssistant,
		Content:        "old answer",
		Results:        model.HistoricalResult(),
		ResultRowCount: 4,
		IsHistorical:   true,
		QueryRecordID:  "r1",
	}
	conversations.Replace("s1", []model.Message{
		{ID: "user-r1", Role: model.RoleUser, Content: "old question", QueryRecordID: "r1"},
		historical,
	})

	w := postJSON(r, "/api/chat/query/reexecute", gin.H{
		"question":   "old question",
		"query_id":   "r1",
		"session_id": "s1",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	timeline := conversations.Timeline("s1")
	require.Len(t, timeline, 4, "exactly one user and one assistant message appended")

	// 原历史消息保持原样
	assert.Equal(t, historical.Content, timeline[1].Content)
	assert.True(t, timeline[1].Results.IsHistorical())

	appendedUser := timeline[2]
	assert.Equal(t, model.RoleUser, appendedUser.Role)
	assert.Equal(t, reExecutePrefix+"old question", appendedUser.Content)
	assert.Equal(t, "r1", appendedUser.QueryRecordID)

	assert.Equal(t, model.RoleAssistant, timeline[3].Role)
	assert.Equal(t, "fresh rows", timeline[3].Content)
}

func TestMessages_ReturnsTimeline(t *testing.T) {
	r, conversations := newChatRouter(assistantReply("x"))
	conversations.Append("s1", model.Message{ID: "m1", Role: model.RoleUser, Content: "hi", Results: model.AbsentResult()})

	req := httptest.NewRequest(http.MethodGet, "/api/chat/messages?session_id=s1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Messages []model.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "hi", body.Messages[0].Content)
}
