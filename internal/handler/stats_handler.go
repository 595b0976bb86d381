package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spend-insight-go/pkg/backend"
	"spend-insight-go/pkg/log"
)

// StatsHandler 是统计与图表端点的只读透传代理，没有额外语义。
type StatsHandler struct {
	gateway backend.Client
}

// NewStatsHandler 创建一个新的 StatsHandler。
func NewStatsHandler(gateway backend.Client) *StatsHandler {
	return &StatsHandler{gateway: gateway}
}

// Proxy 返回一个把 GET 请求原样转发到后端对应路径的处理函数。
func (h *StatsHandler) Proxy(path, failureMessage string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, appErr := h.gateway.ForwardJSON(c.Request.Context(), http.MethodGet, path, nil, c.Request.URL.Query())
		if appErr != nil {
			log.Errorf("[StatsHandler] 透传失败, path: %s, kind: %s", path, appErr.Kind)
			c.JSON(http.StatusInternalServerError, gin.H{"error": failureMessage})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
	}
}
