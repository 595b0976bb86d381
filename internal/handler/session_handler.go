package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"spend-insight-go/internal/config"
	"spend-insight-go/internal/middleware"
	"spend-insight-go/internal/service"
	"spend-insight-go/pkg/log"
)

// SessionHandler 处理会话管理相关的 API 请求。
type SessionHandler struct {
	sessionService      service.SessionService
	historyService      service.HistoryService
	conversationService service.ConversationService
	chatCfg             config.ChatConfig
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(sessionService service.SessionService, historyService service.HistoryService, conversationService service.ConversationService, chatCfg config.ChatConfig) *SessionHandler {
	return &SessionHandler{
		sessionService:      sessionService,
		historyService:      historyService,
		conversationService: conversationService,
		chatCfg:             chatCfg,
	}
}

type createSessionBody struct {
	Title string `json:"title"`
}

// Create 在后端新建会话。失败时网关继续以无会话模式工作，
// 后续查询只是不再携带 session_id。
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionBody
	_ = c.ShouldBindJSON(&req)

	title := req.Title
	if title == "" {
		title = fmt.Sprintf("Chat Session %s", time.Now().Format("2006-01-02"))
	}

	userID := middleware.UserID(c)
	session, err := h.sessionService.Create(c.Request.Context(), userID, title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to create chat session",
			"message": "Unable to create a new chat session. Please try again.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// List 返回会话列表。拉取失败降级为空列表，始终 200。
func (h *SessionHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	limit := h.chatCfg.SessionLimit()
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	sessions := h.sessionService.List(c.Request.Context(), userID, limit)
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// Switch 切换激活会话（纯网关侧状态变更），随后回放该会话历史
// 重建内存时间线。
func (h *SessionHandler) Switch(c *gin.Context) {
	sessionID := c.Param("sessionId")
	userID := middleware.UserID(c)

	session, err := h.sessionService.Switch(c.Request.Context(), userID, sessionID)
	if err != nil {
		log.Errorf("[SessionHandler] 会话切换失败, session: %s, error: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to switch session"})
		return
	}

	messages := h.historyService.Load(c.Request.Context(), sessionID, h.chatCfg.HistoryFetchLimit())
	h.conversationService.Replace(sessionID, messages)

	c.JSON(http.StatusOK, gin.H{"session": session, "messages": messages})
}

// History 回放会话历史并重建内存时间线。历史是尽力而为的，
// 拉取失败返回空列表而不是错误。
func (h *SessionHandler) History(c *gin.Context) {
	sessionID := c.Param("sessionId")
	limit := h.chatCfg.HistoryFetchLimit()
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}

	messages := h.historyService.Load(c.Request.Context(), sessionID, limit)
	h.conversationService.Replace(sessionID, messages)

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
