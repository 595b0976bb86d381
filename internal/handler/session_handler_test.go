package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spend-insight-go/internal/config"
	"spend-insight-go/internal/middleware"
	"spend-insight-go/internal/model"
	"spend-insight-go/internal/service"
)

// scriptedSessionService 用可配置回调实现 SessionService。
type scriptedSessionService struct {
	createFn func(userID, title string) (*model.Session, error)
	listFn   func(userID string, limit int) []model.Session
	switchFn func(userID, sessionID string) (*model.Session, error)
}

func (s *scriptedSessionService) Create(_ context.Context, userID, title string) (*model.Session, error) {
	return s.createFn(userID, title)
}

func (s *scriptedSessionService) List(_ context.Context, userID string, limit int) []model.Session {
	return s.listFn(userID, limit)
}

func (s *scriptedSessionService) Switch(_ context.Context, userID, sessionID string) (*model.Session, error) {
	return s.switchFn(userID, sessionID)
}

func (s *scriptedSessionService) Active(context.Context, string) *model.Session { return nil }

// scriptedHistoryService 返回预置的历史时间线。
type scriptedHistoryService struct {
	messages []model.Message
}

func (s *scriptedHistoryService) Load(context.Context, string, int) []model.Message {
	return s.messages
}

func newSessionRouter(sessions *scriptedSessionService, history *scriptedHistoryService) (*gin.Engine, service.ConversationService) {
	conversations := service.NewConversationService()
	h := NewSessionHandler(sessions, history, conversations, config.ChatConfig{})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, "default-user")
	})
	r.POST("/api/chat/sessions", h.Create)
	r.GET("/api/chat/sessions", h.List)
	r.POST("/api/chat/sessions/:sessionId/switch", h.Switch)
	r.GET("/api/chat/sessions/:sessionId/history", h.History)
	return r, conversations
}

func TestSessionCreate_DefaultTitle(t *testing.T) {
	var gotTitle string
	sessions := &scriptedSessionService{
		createFn: func(userID, title string) (*model.Session, error) {
			gotTitle = title
			return &model.Session{ID: "s1", DisplayName: title, IsActive: true}, nil
		},
	}
	r, _ := newSessionRouter(sessions, &scriptedHistoryService{})

	w := postJSON(r, "/api/chat/sessions", gin.H{})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, gotTitle, "Chat Session ")

	var body struct {
		Session model.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "s1", body.Session.ID)
	assert.True(t, body.Session.IsActive)
}

func TestSessionCreate_Failure(t *testing.T) {
	sessions := &scriptedSessionService{
		createFn: func(string, string) (*model.Session, error) {
			return nil, errors.New("backend down")
		},
	}
	r, _ := newSessionRouter(sessions, &scriptedHistoryService{})

	w := postJSON(r, "/api/chat/sessions", gin.H{"title": "t"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to create chat session")
}

func TestSessionList_LimitOverride(t *testing.T) {
	var gotLimit int
	sessions := &scriptedSessionService{
		listFn: func(userID string, limit int) []model.Session {
			gotLimit = limit
			return []model.Session{{ID: "s1"}}
		},
	}
	r, _ := newSessionRouter(sessions, &scriptedHistoryService{})

	req := httptest.NewRequest(http.MethodGet, "/api/chat/sessions?limit=3", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, gotLimit)
	assert.Contains(t, w.Body.String(), `"sessions"`)
}

func TestSessionSwitch_ReplacesTimeline(t *testing.T) {
	sessions := &scriptedSessionService{
		switchFn: func(userID, sessionID string) (*model.Session, error) {
			return &model.Session{ID: sessionID, IsActive: true}, nil
		},
	}
	history := &scriptedHistoryService{messages: []model.Message{
		{ID: "user-r1", Role: model.RoleUser, Content: "q", Results: model.AbsentResult()},
		{ID: "assistant-r1", Role: model.RoleAssistant, Content: "a", Results: model.AbsentResult()},
	}}
	r, conversations := newSessionRouter(sessions, history)

	// 旧时间线应被历史回放整体替换
	conversations.Append("s2", model.Message{ID: "stale"})

	w := postJSON(r, "/api/chat/sessions/s2/switch", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"session"`)
	assert.Contains(t, w.Body.String(), `"messages"`)

	timeline := conversations.Timeline("s2")
	require.Len(t, timeline, 2)
	assert.Equal(t, "user-r1", timeline[0].ID)
}

func TestSessionSwitch_Failure(t *testing.T) {
	sessions := &scriptedSessionService{
		switchFn: func(string, string) (*model.Session, error) {
			return nil, errors.New("redis down")
		},
	}
	r, _ := newSessionRouter(sessions, &scriptedHistoryService{})

	w := postJSON(r, "/api/chat/sessions/s2/switch", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to switch session")
}

func TestSessionHistory_RebuildsTimeline(t *testing.T) {
	history := &scriptedHistoryService{messages: []model.Message{
		{ID: "user-r1", Role: model.RoleUser, Content: "q", Results: model.AbsentResult()},
	}}
	r, conversations := newSessionRouter(&scriptedSessionService{}, history)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/sessions/s1/history", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	timeline := conversations.Timeline("s1")
	require.Len(t, timeline, 1)
	assert.Equal(t, "user-r1", timeline[0].ID)
}
