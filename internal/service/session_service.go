// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"spend-insight-go/internal/model"
	"spend-insight-go/internal/repository"
	"spend-insight-go/pkg/backend"
	"spend-insight-go/pkg/log"
)

// SessionService 定义了会话管理的接口。会话本体由后端持有，
// 本层负责创建、列举以及网关侧的激活状态切换。
type SessionService interface {
	// Create 在后端新建一个会话并将其设为激活会话。
	Create(ctx context.Context, userID, title string) (*model.Session, error)
	// List 拉取用户的会话列表（后端按 lastUsedAt 倒序返回）。
	// 失败时返回空列表，绝不向调用方抛错。
	List(ctx context.Context, userID string, limit int) []model.Session
	// Switch 切换激活会话，纯网关侧状态变更，不触达查询后端。
	Switch(ctx context.Context, userID, sessionID string) (*model.Session, error)
	// Active 返回当前激活会话，没有时返回 nil。
	Active(ctx context.Context, userID string) *model.Session
}

type sessionService struct {
	gateway backend.Client
	state   repository.SessionStateRepository
}

// NewSessionService 创建一个新的 SessionService。
func NewSessionService(gateway backend.Client, state repository.SessionStateRepository) SessionService {
	return &sessionService{gateway: gateway, state: state}
}

type createSessionRequest struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
}

type createSessionResponse struct {
	Session *model.Session `json:"session"`
}

type listSessionsResponse struct {
	Sessions []model.Session `json:"sessions"`
}

// Create 在后端新建会话。失败时调用方应继续以无会话模式运行，
// 后续查询只是不再携带 session_id。
func (s *sessionService) Create(ctx context.Context, userID, title string) (*model.Session, error) {
	raw, appErr := s.gateway.ForwardJSON(ctx, http.MethodPost, "/api/chat/sessions",
		createSessionRequest{UserID: userID, Title: title}, nil)
	if appErr != nil {
		log.Errorf("[SessionService] 创建会话失败, user: %s, kind: %s", userID, appErr.Kind)
		return nil, appErr
	}

	var resp createSessionResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Session == nil {
		log.Errorf("[SessionService] 创建会话响应解析失败, user: %s", userID)
		return nil, model.NewAppError(model.KindUnknown, "backend returned malformed session", 0)
	}

	resp.Session.IsActive = true
	if err := s.state.SetActiveSession(ctx, userID, resp.Session); err != nil {
		log.Warnf("[SessionService] 记录激活会话失败: %v", err)
	}
	log.Infof("[SessionService] 会话已创建, user: %s, session: %s", userID, resp.Session.ID)
	return resp.Session, nil
}

// List 拉取会话列表并刷新缓存副本。任何失败都降级为空列表。
func (s *sessionService) List(ctx context.Context, userID string, limit int) []model.Session {
	query := url.Values{}
	query.Set("user_id", userID)
	query.Set("limit", strconv.Itoa(limit))

	raw, appErr := s.gateway.ForwardJSON(ctx, http.MethodGet, "/api/chat/sessions", nil, query)
	if appErr != nil {
		log.Warnf("[SessionService] 拉取会话列表失败, user: %s, kind: %s", userID, appErr.Kind)
		return []model.Session{}
	}

	var resp listSessionsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		log.Warnf("[SessionService] 会话列表解析失败, user: %s, error: %v", userID, err)
		return []model.Session{}
	}
	if resp.Sessions == nil {
		resp.Sessions = []model.Session{}
	}

	// 标记激活会话并刷新缓存副本
	if active := s.Active(ctx, userID); active != nil {
		for i := range resp.Sessions {
			resp.Sessions[i].IsActive = resp.Sessions[i].ID == active.ID
		}
	}
	if err := s.state.CacheSessionList(ctx, userID, resp.Sessions); err != nil {
		log.Warnf("[SessionService] 缓存会话列表失败: %v", err)
	}
	return resp.Sessions
}

// Switch 将指定会话设为激活会话。会话信息优先取缓存副本。
func (s *sessionService) Switch(ctx context.Context, userID, sessionID string) (*model.Session, error) {
	session := &model.Session{ID: sessionID}
	if cached, err := s.state.GetCachedSessionList(ctx, userID); err == nil {
		for i := range cached {
			if cached[i].ID == sessionID {
				session = &cached[i]
				break
			}
		}
	}
	session.IsActive = true
	if err := s.state.SetActiveSession(ctx, userID, session); err != nil {
		return nil, err
	}
	log.Infof("[SessionService] 已切换会话, user: %s, session: %s", userID, sessionID)
	return session, nil
}

// Active 返回当前激活会话。状态读取失败视同无激活会话。
func (s *sessionService) Active(ctx context.Context, userID string) *model.Session {
	session, err := s.state.GetActiveSession(ctx, userID)
	if err != nil {
		log.Warnf("[SessionService] 读取激活会话失败: %v", err)
		return nil
	}
	return session
}
