package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spend-insight-go/internal/config"
	"spend-insight-go/internal/export"
	"spend-insight-go/internal/middleware"
	"spend-insight-go/pkg/backend"
)

func newExportRouter(backendHandler http.HandlerFunc) (*gin.Engine, *httptest.Server) {
	srv := httptest.NewServer(backendHandler)
	gateway := backend.NewClient(config.BackendConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
	h := NewExportHandler(export.NewService(gateway))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, "default-user")
	})
	r.POST("/api/chat/export", h.Full)
	r.POST("/api/chat/export/rows", h.Rows)
	return r, srv
}

func TestExportFull_Attachment(t *testing.T) {
	r, srv := newExportRouter(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(gin.H{"success": true, "results": "vendor,spend\nAcme,1200"})
	})
	defer srv.Close()

	w := postJSON(r, "/api/chat/export", gin.H{"question": "total spend?"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vendor,spend\nAcme,1200", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")

	disposition := w.Header().Get("Content-Disposition")
	assert.Contains(t, disposition, "attachment")
	assert.Contains(t, disposition, "query-results-")
	assert.Contains(t, disposition, ".csv")
}

func TestExportFull_BlankQuestion(t *testing.T) {
	r, srv := newExportRouter(func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("backend must not be called")
	})
	defer srv.Close()

	w := postJSON(r, "/api/chat/export", gin.H{"question": "  "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Question is required")
}

func TestExportFull_ServiceUnavailable(t *testing.T) {
	r, srv := newExportRouter(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer srv.Close()

	w := postJSON(r, "/api/chat/export", gin.H{"question": "q"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "AI service is currently unavailable")
	assert.Contains(t, w.Body.String(), "Cannot export data while the AI service is down")
}

func TestExportRows_Delimited(t *testing.T) {
	r, srv := newExportRouter(func(w http.ResponseWriter, req *http.Request) {})
	defer srv.Close()

	// 原始字节直达行集解析，列顺序取自第一行的键顺序
	w := postRaw(r, "/api/chat/export/rows",
		`{"rows": [{"vendor": "Acme", "spend": 1200}], "filename": "spend-report"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vendor,spend\nAcme,1200", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `"spend-report.csv"`)
}

func TestExportRows_Excel(t *testing.T) {
	r, srv := newExportRouter(func(w http.ResponseWriter, req *http.Request) {})
	defer srv.Close()

	w := postJSON(r, "/api/chat/export/rows", gin.H{
		"rows":   []gin.H{{"vendor": "Acme"}},
		"format": "xlsx",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Body.Bytes())
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
}

func TestExportRows_EmptyRejected(t *testing.T) {
	r, srv := newExportRouter(func(w http.ResponseWriter, req *http.Request) {})
	defer srv.Close()

	w := postJSON(r, "/api/chat/export/rows", gin.H{"rows": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/chat/export/rows", gin.H{"rows": "not an array"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
