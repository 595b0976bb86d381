package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"spend-insight-go/internal/markdown"
	"spend-insight-go/internal/model"
	"spend-insight-go/pkg/backend"
	"spend-insight-go/pkg/log"
)

// 无 explanation 时的成功回显文案。
const (
	askFallbackContent       = "I found some results for your query."
	reExecuteFallbackContent = "I found some results for your re-executed query."
)

// QueryService 是查询分发器：把一个问题经传输网关送往后端，
// 解读结构化响应（成功 / 软失败 / 硬失败），产出一条归一化的助手消息。
// 无论结果如何，调用方的时间线总会得到一条消息。
type QueryService interface {
	Ask(ctx context.Context, question, sessionID, userID string) model.Message
	// ReExecute 与 Ask 的解读逻辑完全一致，仅成功回显文案不同。
	// 追加新消息而非改写历史消息由调用方保证。
	ReExecute(ctx context.Context, question, sessionID, userID string) model.Message
}

type queryService struct {
	gateway      backend.Client
	sessions     SessionService
	sessionLimit int
}

// NewQueryService 创建一个新的 QueryService。
func NewQueryService(gateway backend.Client, sessions SessionService, sessionLimit int) QueryService {
	return &queryService{gateway: gateway, sessions: sessions, sessionLimit: sessionLimit}
}

type queryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id"`
}

type queryResponse struct {
	Success     *bool           `json:"success"`
	Explanation string          `json:"explanation"`
	Response    string          `json:"response"`
	SQLQuery    string          `json:"sql_query"`
	Results     json.RawMessage `json:"results"`
	Error       string          `json:"error"`
	Metadata    struct {
		QueryID string `json:"query_id"`
	} `json:"metadata"`
}

func (s *queryService) Ask(ctx context.Context, question, sessionID, userID string) model.Message {
	return s.dispatch(ctx, question, sessionID, userID, askFallbackContent)
}

func (s *queryService) ReExecute(ctx context.Context, question, sessionID, userID string) model.Message {
	return s.dispatch(ctx, question, sessionID, userID, reExecuteFallbackContent)
}

func (s *queryService) dispatch(ctx context.Context, question, sessionID, userID, successFallback string) model.Message {
	log.Infof("[QueryService] 分发查询, user: %s, session: %s, question: %q", userID, sessionID, question)

	raw, appErr := s.gateway.ForwardJSON(ctx, http.MethodPost, "/api/chat/query",
		queryRequest{Question: question, SessionID: sessionID, UserID: userID}, nil)

	var msg model.Message
	switch {
	case appErr != nil:
		msg = transportFailureMessage(appErr)
	default:
		msg = interpretResponse(raw, successFallback)
	}

	// 查询后异步刷新会话列表以同步 queryCount/lastUsedAt。
	// 刷新结果只替换缓存副本，它的失败与乱序都不影响消息流。
	go func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.sessions.List(refreshCtx, userID, s.sessionLimit)
	}()

	return msg
}

// transportFailureMessage 把传输层错误装配为带有针对性文案的助手消息。
func transportFailureMessage(appErr *model.AppError) model.Message {
	var content string
	switch appErr.Kind {
	case model.KindTimeout:
		content = "Your query is taking longer than expected. Please try a simpler question or try again later."
	case model.KindServiceUnavailable:
		content = "The AI service is temporarily down. Please try again in a few moments."
	case model.KindNetworkUnavailable:
		content = "Unable to connect to the analytics service. Please check if all services are running."
	default:
		content = "I encountered an error while processing your question. Please try again or rephrase your query."
	}
	return newAssistantMessage(content, func(msg *model.Message) {
		msg.Error = appErr
	})
}

// interpretResponse 解读后端 2xx 响应：优先识别 success:false 的软失败，
// 其余按成功处理并把多态 results 归一化为带标签联合。
func interpretResponse(raw json.RawMessage, successFallback string) model.Message {
	var data queryResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Errorf("[QueryService] 响应解析失败: %v", err)
		return newAssistantMessage(
			"I encountered an error while processing your question. Please try again or rephrase your query.",
			func(msg *model.Message) {
				msg.Error = model.NewAppError(model.KindUnknown, "malformed backend response", 0)
			})
	}

	// 软失败：载荷显式声明 success:false 并携带错误
	if data.Success != nil && !*data.Success && data.Error != "" {
		content := data.Explanation
		if content == "" {
			content = softFailureContent(data.Error)
		}
		return newAssistantMessage(content, func(msg *model.Message) {
			msg.Error = model.NewAppError(model.KindUpstream, data.Error, 0)
			msg.QueryRecordID = data.Metadata.QueryID
		})
	}

	content := data.Explanation
	if content == "" {
		content = data.Response
	}
	if content == "" {
		content = successFallback
	}

	return newAssistantMessage(content, func(msg *model.Message) {
		msg.GeneratedQuery = data.SQLQuery
		msg.QueryRecordID = data.Metadata.QueryID
		payload := normalizeResults(data.Results)
		switch payload.Kind() {
		case model.PayloadFailed:
			// 结果子对象失败：行集缺失，错误上浮到消息级
			msg.Error = payload.Err()
		case model.PayloadRows:
			msg.Results = payload
			if rows, ok := payload.Rows(); ok {
				msg.ResultRowCount = len(rows.Rows)
			}
		}
		if data.Error != "" {
			msg.Error = model.NewAppError(model.KindUpstream, data.Error, 0)
		}
	})
}

// normalizeResults 在分发器边界把后端多态的 results 字段归一化一次：
// 裸数组、{success,data,error} 信封或缺失，统一为 ResultPayload。
func normalizeResults(raw json.RawMessage) model.ResultPayload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return model.AbsentResult()
	}

	switch trimmed[0] {
	case '[':
		rs, err := model.ParseRowSet(trimmed)
		if err != nil {
			log.Warnf("[QueryService] 结果数组解析失败: %v", err)
			return model.AbsentResult()
		}
		return model.RowsResult(rs)
	case '{':
		var envelope struct {
			Success *bool           `json:"success"`
			Data    json.RawMessage `json:"data"`
			Error   string          `json:"error"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			log.Warnf("[QueryService] 结果信封解析失败: %v", err)
			return model.AbsentResult()
		}
		if envelope.Success != nil && !*envelope.Success {
			message := envelope.Error
			if message == "" {
				message = "query execution failed"
			}
			return model.FailedResult(model.NewAppError(model.KindUpstream, message, 0))
		}
		if len(bytes.TrimSpace(envelope.Data)) > 0 && !bytes.Equal(bytes.TrimSpace(envelope.Data), []byte("null")) {
			rs, err := model.ParseRowSet(envelope.Data)
			if err != nil {
				log.Warnf("[QueryService] 信封数据解析失败: %v", err)
				return model.AbsentResult()
			}
			return model.RowsResult(rs)
		}
		return model.AbsentResult()
	default:
		// 字符串等非表格形态（导出模式的 csv 文本）不进入对话时间线
		return model.AbsentResult()
	}
}

// softFailureContent 为后端报告的错误挑选用户可读文案。
func softFailureContent(backendError string) string {
	lower := strings.ToLower(backendError)
	switch {
	case strings.Contains(lower, "timeout"):
		return "The request timed out. Please try a simpler query or check if all services are running."
	case strings.Contains(lower, "unavailable"):
		return "The AI service is temporarily unavailable. Please try again later."
	default:
		return "I encountered an error while processing your question. Please try again or rephrase your query."
	}
}

func newAssistantMessage(content string, mutate func(*model.Message)) model.Message {
	msg := model.Message{
		ID:          uuid.NewString(),
		Role:        model.RoleAssistant,
		Content:     content,
		ContentHTML: markdown.Render(content),
		Timestamp:   time.Now(),
		Results:     model.AbsentResult(),
	}
	if mutate != nil {
		mutate(&msg)
	}
	return msg
}
