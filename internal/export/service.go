package export

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"spend-insight-go/internal/model"
	"spend-insight-go/pkg/backend"
	"spend-insight-go/pkg/log"
)

// Service 驱动完整数据集下载：不使用内存中可能被截断的分页行集，
// 而是要求后端重新生成并以分隔文本形式返回全量结果。
type Service struct {
	gateway backend.Client
}

// NewService 创建一个新的导出 Service。
func NewService(gateway backend.Client) *Service {
	return &Service{gateway: gateway}
}

// fullExportRequest 是后端查询接口的导出模式请求体。
type fullExportRequest struct {
	Question           string `json:"question"`
	Format             string `json:"format"`
	SessionID          string `json:"session_id,omitempty"`
	UserID             string `json:"user_id"`
	IncludeExplanation bool   `json:"include_explanation"`
	ExecuteQuery       bool   `json:"execute_query"`
}

type fullExportResponse struct {
	Results json.RawMessage `json:"results"`
}

// DownloadFull 重新执行问题并返回完整结果的字节与建议文件名。
// 这是唯一没有降级路径的导出方式，失败会直接对外暴露。
func (s *Service) DownloadFull(ctx context.Context, question, sessionID, userID string) ([]byte, string, *model.AppError) {
	if question == "" {
		return nil, "", model.NewAppError(model.KindValidation, "Question is required", http.StatusBadRequest)
	}

	body := fullExportRequest{
		Question:           question,
		Format:             "csv",
		SessionID:          sessionID,
		UserID:             userID,
		IncludeExplanation: false,
		ExecuteQuery:       true,
	}

	raw, appErr := s.gateway.ForwardJSON(ctx, http.MethodPost, "/api/chat/query", body, nil)
	if appErr != nil {
		log.Errorf("[Export] 全量导出失败, question: %q, kind: %s", question, appErr.Kind)
		return nil, "", appErr
	}

	var resp fullExportResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, "", model.NewAppError(model.KindUnknown, "backend returned malformed export payload", 0)
	}

	// csv 模式下 results 是一段原始文本
	var csvText string
	if err := json.Unmarshal(resp.Results, &csvText); err != nil {
		log.Errorf("[Export] 后端未按 csv 模式返回文本结果, question: %q", question)
		return nil, "", model.NewAppError(model.KindUnknown, "backend did not return exportable results", 0)
	}

	filename := fmt.Sprintf("query-results-%d.csv", time.Now().UnixMilli())
	log.Infof("[Export] 全量导出完成, question: %q, bytes: %d", question, len(csvText))
	return []byte(csvText), filename, nil
}
