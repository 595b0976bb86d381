package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"spend-insight-go/internal/export"
	"spend-insight-go/internal/middleware"
	"spend-insight-go/internal/model"
	"spend-insight-go/pkg/log"
)

// ExportHandler 处理结果导出相关的 API 请求。
type ExportHandler struct {
	exportService *export.Service
}

// NewExportHandler 创建一个新的 ExportHandler。
func NewExportHandler(exportService *export.Service) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

type fullExportBody struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// Full 驱动完整数据集下载：要求后端重新生成全量结果并以附件返回。
// 内存中的分页行集可能被截断，因此不参与此路径。
func (h *ExportHandler) Full(c *gin.Context) {
	var req fullExportBody
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
	data, filename, appErr := h.exportService.DownloadFull(c.Request.Context(), question, req.SessionID, userID)
	if appErr != nil {
		status, body := exportFailureResponse(appErr)
		c.JSON(status, body)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// exportFailureResponse 按错误类别装配导出失败的响应。
func exportFailureResponse(appErr *model.AppError) (int, gin.H) {
	switch appErr.Kind {
	case model.KindTimeout:
		return http.StatusRequestTimeout, gin.H{
			"error":   "Export timeout",
			"message": "The export request is taking too long. Please try a simpler query.",
		}
	case model.KindServiceUnavailable:
		return http.StatusServiceUnavailable, gin.H{
			"error":   "AI service is currently unavailable",
			"message": "Cannot export data while the AI service is down. Please try again later.",
		}
	case model.KindNetworkUnavailable:
		return http.StatusServiceUnavailable, gin.H{
			"error":   "Service unavailable",
			"message": "Unable to connect to the analytics service for export.",
		}
	case model.KindValidation:
		return http.StatusBadRequest, gin.H{"error": appErr.Message}
	default:
		return http.StatusInternalServerError, gin.H{
			"error":   "Failed to export query results",
			"message": appErr.Message,
		}
	}
}

type rowsExportBody struct {
	Rows     json.RawMessage `json:"rows"`
	Format   string          `json:"format"`
	Filename string          `json:"filename"`
}

// Rows 导出调用方持有的行集（通常是展示分页）。
// xlsx 生成失败时静默降级为分隔文本，扩展名跟随实际使用的导出器。
func (h *ExportHandler) Rows(c *gin.Context) {
	var req rowsExportBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.Rows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rows are required"})
		return
	}

	rs, err := model.ParseRowSet(req.Rows)
	if err != nil {
		log.Warnf("[ExportHandler] 行集解析失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rows must be an array of objects"})
		return
	}
	if rs.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rows are required"})
		return
	}

	var preferred export.TabularExporter = export.CSVExporter{}
	if req.Format == "xlsx" || req.Format == "excel" {
		preferred = export.ExcelExporter{}
	}
	data, used := export.ExportWithFallback(preferred, rs)

	base := req.Filename
	if base == "" {
		base = fmt.Sprintf("query-results-%d", time.Now().UnixMilli())
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"."+used.Extension()))
	c.Data(http.StatusOK, used.ContentType(), data)
}
