package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"spend-insight-go/internal/markdown"
	"spend-insight-go/internal/model"
	"spend-insight-go/pkg/backend"
	"spend-insight-go/pkg/log"
)

// 历史记录没有 explanation 时使用的固定回显文案。
const historyFallbackContent = "Query executed successfully."

// HistoryService 把后端持久化的 QueryRecord 还原为一条连贯的消息时间线。
type HistoryService interface {
	// Load 拉取至多 limit 条记录并展开为 oldest-first 的消息序列。
	// 历史回放是尽力而为的：任何失败都返回空列表，不打断对话。
	Load(ctx context.Context, sessionID string, limit int) []model.Message
}

type historyService struct {
	gateway backend.Client
}

// NewHistoryService 创建一个新的 HistoryService。
func NewHistoryService(gateway backend.Client) HistoryService {
	return &historyService{gateway: gateway}
}

type historyResponse struct {
	History []model.QueryRecord `json:"history"`
}

// Load 后端按 createdAt 倒序返回记录；这里反向遍历，
// 使最终时间线 oldest-first，且每条记录先用户消息后助手消息。
func (s *historyService) Load(ctx context.Context, sessionID string, limit int) []model.Message {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	raw, appErr := s.gateway.ForwardJSON(ctx, http.MethodGet, "/api/chat/history/"+sessionID, nil, query)
	if appErr != nil {
		log.Warnf("[HistoryService] 历史拉取失败, session: %s, kind: %s", sessionID, appErr.Kind)
		return []model.Message{}
	}

	var resp historyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		log.Warnf("[HistoryService] 历史解析失败, session: %s, error: %v", sessionID, err)
		return []model.Message{}
	}

	messages := make([]model.Message, 0, len(resp.History)*2)
	for i := len(resp.History) - 1; i >= 0; i-- {
		record := resp.History[i]
		user, assistant := expandRecord(record)
		messages = append(messages, user, assistant)
	}
	log.Infof("[HistoryService] 历史已还原, session: %s, records: %d", sessionID, len(resp.History))
	return messages
}

// expandRecord 将一条 QueryRecord 展开为一对用户/助手消息。
// 行数大于零的记录只保留了行数，行数据需要重新执行查询才能看到，
// 因此助手消息的 results 置为历史占位符。
func expandRecord(record model.QueryRecord) (model.Message, model.Message) {
	user := model.Message{
		ID:            "user-" + record.ID,
		Role:          model.RoleUser,
		Content:       record.Question,
		Timestamp:     record.CreatedAt,
		QueryRecordID: record.ID,
	}

	content := record.Explanation
	if content == "" {
		content = historyFallbackContent
	}

	assistant := model.Message{
		ID:             "assistant-" + record.ID,
		Role:           model.RoleAssistant,
		Content:        content,
		ContentHTML:    markdown.Render(content),
		Timestamp:      record.CreatedAt,
		GeneratedQuery: record.GeneratedQuery,
		Results:        model.AbsentResult(),
		QueryRecordID:  record.ID,
		ResultRowCount: record.ResultRowCount,
		IsHistorical:   true,
	}
	if record.ResultRowCount > 0 {
		assistant.Results = model.HistoricalResult()
	}
	if record.ExecutionError != "" {
		assistant.Error = model.NewAppError(model.KindUnknown, record.ExecutionError, 0)
	}
	return user, assistant
}
