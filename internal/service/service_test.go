package service

import (
	"context"
	"encoding/json"
	"net/url"

	"spend-insight-go/internal/model"
	"spend-insight-go/pkg/log"
)

func init() {
	log.Init("error", "console", "")
}

// fakeGateway 以固定回调充当传输网关。
type fakeGateway struct {
	jsonFn func(method, path string, body interface{}, query url.Values) (json.RawMessage, *model.AppError)
}

func (f *fakeGateway) ForwardJSON(_ context.Context, method, path string, body interface{}, query url.Values) (json.RawMessage, *model.AppError) {
	return f.jsonFn(method, path, body, query)
}

func (f *fakeGateway) ForwardRaw(_ context.Context, method, path string, body interface{}, query url.Values) ([]byte, string, *model.AppError) {
	raw, appErr := f.jsonFn(method, path, body, query)
	return raw, "application/json", appErr
}

// stubSessions 满足查询分发器对会话刷新的依赖。
type stubSessions struct{}

func (stubSessions) Create(context.Context, string, string) (*model.Session, error) { return nil, nil }

func (stubSessions) List(context.Context, string, int) []model.Session { return []model.Session{} }

func (stubSessions) Switch(context.Context, string, string) (*model.Session, error) {
	return nil, nil
}

func (stubSessions) Active(context.Context, string) *model.Session { return nil }
