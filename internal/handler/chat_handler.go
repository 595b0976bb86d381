// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"spend-insight-go/internal/middleware"
	"spend-insight-go/internal/model"
	"spend-insight-go/internal/service"
	"spend-insight-go/pkg/log"
)

// reExecutePrefix 标记一条用户消息是历史查询的重新执行。
const reExecutePrefix = "🔄 Re-executing: "

// ChatHandler 处理对话轮次相关的 API 请求。
type ChatHandler struct {
	queryService        service.QueryService
	conversationService service.ConversationService
	sessionService      service.SessionService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(queryService service.QueryService, conversationService service.ConversationService, sessionService service.SessionService) *ChatHandler {
	return &ChatHandler{
		queryService:        queryService,
		conversationService: conversationService,
		sessionService:      sessionService,
	}
}

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// Query 处理一轮问答：先同步追加用户消息，再经分发器调用后端，
// 最后追加助手消息。同一会话同时只允许一轮在途。
func (h *ChatHandler) Query(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question is required"})
		return
	}

	userID := middleware.UserID(c)
	sessionID := h.resolveSessionID(c, req.SessionID, userID)

	if !h.conversationService.BeginTurn(sessionID) {
		c.JSON(http.StatusConflict, gin.H{"error": "A query is already in progress for this session"})
		return
	}
	defer h.conversationService.EndTurn(sessionID)

	// 用户消息在网络调用开始前落入时间线，保证高延迟期间本轮可见
	h.conversationService.Append(sessionID, newUserMessage(question))

	msg := h.queryService.Ask(c.Request.Context(), question, sessionID, userID)
	h.conversationService.Append(sessionID, msg)

	c.JSON(turnStatus(msg), msg)
}

type reExecuteRequest struct {
	Question  string `json:"question"`
	QueryID   string `json:"query_id"`
	SessionID string `json:"session_id"`
}

// ReExecute 重新执行一条历史查询：追加带前缀的新用户消息并照常分发。
// 原历史消息不会被改写或移除，时间线单调增长。
func (h *ChatHandler) ReExecute(c *gin.Context) {
	var req reExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		// 空问题的重执行是禁用态
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question is required"})
		return
	}

	userID := middleware.UserID(c)
	sessionID := h.resolveSessionID(c, req.SessionID, userID)

	if !h.conversationService.BeginTurn(sessionID) {
		c.JSON(http.StatusConflict, gin.H{"error": "A query is already in progress for this session"})
		return
	}
	defer h.conversationService.EndTurn(sessionID)

	userMsg := newUserMessage(reExecutePrefix + question)
	userMsg.QueryRecordID = req.QueryID
	h.conversationService.Append(sessionID, userMsg)

	msg := h.queryService.ReExecute(c.Request.Context(), question, sessionID, userID)
	h.conversationService.Append(sessionID, msg)

	c.JSON(turnStatus(msg), msg)
}

// Messages 返回当前会话的内存时间线。
func (h *ChatHandler) Messages(c *gin.Context) {
	userID := middleware.UserID(c)
	sessionID := h.resolveSessionID(c, c.Query("session_id"), userID)
	c.JSON(http.StatusOK, gin.H{"messages": h.conversationService.Timeline(sessionID)})
}

// resolveSessionID 优先使用请求指定的会话，否则回退到激活会话。
// 两者皆无时以无会话模式继续，查询不携带 session_id。
func (h *ChatHandler) resolveSessionID(c *gin.Context, requested, userID string) string {
	if requested != "" {
		return requested
	}
	if active := h.sessionService.Active(c.Request.Context(), userID); active != nil {
		return active.ID
	}
	log.Infof("[ChatHandler] 无激活会话, user: %s, 以无会话模式继续", userID)
	return ""
}

// turnStatus 把助手消息中的错误映射到网关自身的状态码。
// 后端在 2xx 载荷里报告的软失败仍然是本层的 200。
func turnStatus(msg model.Message) int {
	if msg.Error == nil {
		return http.StatusOK
	}
	switch msg.Error.Kind {
	case model.KindTimeout:
		return http.StatusRequestTimeout
	case model.KindServiceUnavailable, model.KindNetworkUnavailable:
		return http.StatusServiceUnavailable
	case model.KindUpstream:
		if msg.Error.HTTPStatus > 0 {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func newUserMessage(content string) model.Message {
	return model.Message{
		ID:        uuid.NewString(),
		Role:      model.RoleUser,
		Content:   content,
		Timestamp: time.Now(),
		Results:   model.AbsentResult(),
	}
}
