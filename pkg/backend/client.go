// Package backend provides a client for the query-translation backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"spend-insight-go/internal/config"
	"spend-insight-go/internal/model"
	"spend-insight-go/pkg/log"
)

// Client defines the interface for the transport gateway.
// 每次调用施加一个整体硬超时，失败一律归一化为 model.AppError，
// 不重试，不让底层错误穿透。
type Client interface {
	// ForwardJSON 转发请求并期望 JSON 响应体。
	ForwardJSON(ctx context.Context, method, path string, body interface{}, query url.Values) (json.RawMessage, *model.AppError)
	// ForwardRaw 转发请求并返回原始字节和 Content-Type，用于非 JSON 负载（导出）。
	ForwardRaw(ctx context.Context, method, path string, body interface{}, query url.Values) ([]byte, string, *model.AppError)
}

type httpClient struct {
	cfg    config.BackendConfig
	client *http.Client
}

// NewClient creates a new backend client from the config.
func NewClient(cfg config.BackendConfig) Client {
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (c *httpClient) ForwardJSON(ctx context.Context, method, path string, body interface{}, query url.Values) (json.RawMessage, *model.AppError) {
	data, _, appErr := c.forward(ctx, method, path, body, query)
	if appErr != nil {
		return nil, appErr
	}
	if !json.Valid(data) {
		log.Errorf("[BackendClient] 后端返回了非法 JSON, path: %s", path)
		return nil, model.NewAppError(model.KindUnknown, "backend returned malformed response", 0)
	}
	return json.RawMessage(data), nil
}

func (c *httpClient) ForwardRaw(ctx context.Context, method, path string, body interface{}, query url.Values) ([]byte, string, *model.AppError) {
	return c.forward(ctx, method, path, body, query)
}

// forward 执行一次至多一次的后端调用：构造请求、施加硬超时、分类失败。
func (c *httpClient) forward(ctx context.Context, method, path string, body interface{}, query url.Values) ([]byte, string, *model.AppError) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		reqBytes, err := json.Marshal(body)
		if err != nil {
			return nil, "", model.NewAppError(model.KindUnknown, fmt.Sprintf("failed to marshal request: %v", err), 0)
		}
		reqBody = bytes.NewReader(reqBytes)
	}

	target := c.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, "", model.NewAppError(model.KindUnknown, fmt.Sprintf("failed to create request: %v", err), 0)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", c.classifyTransportError(path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		// 超时也可能在读取响应体时触发
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			log.Warnf("[BackendClient] 读取响应超时, path: %s", path)
			return nil, "", model.NewAppError(model.KindTimeout, "Request timeout", http.StatusRequestTimeout)
		}
		return nil, "", model.NewAppError(model.KindUnknown, fmt.Sprintf("failed to read response: %v", err), 0)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Errorf("[BackendClient] 后端返回非 2xx 状态码, path: %s, status: %d, body: %s", path, resp.StatusCode, string(data))
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, "", model.NewAppError(model.KindServiceUnavailable, "AI service is currently unavailable", http.StatusServiceUnavailable)
		}
		return nil, "", model.NewAppError(model.KindUpstream, fmt.Sprintf("backend responded with status %d", resp.StatusCode), resp.StatusCode)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// classifyTransportError 区分超时与网络不可达。
func (c *httpClient) classifyTransportError(path string, err error) *model.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		log.Warnf("[BackendClient] 请求超时, path: %s, timeout: %s", path, c.cfg.Timeout())
		return model.NewAppError(model.KindTimeout, "Request timeout", http.StatusRequestTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return model.NewAppError(model.KindUnknown, "request canceled", 0)
	}
	log.Errorf("[BackendClient] 无法连接后端, path: %s, error: %v", path, err)
	return model.NewAppError(model.KindNetworkUnavailable, "Service unavailable", http.StatusServiceUnavailable)
}
