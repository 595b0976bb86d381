package service

import (
	"sync"

	"spend-insight-go/internal/model"
)

// ConversationService 持有活动会话的内存时间线。
// 时间线只增不改：用户消息在网络调用开始前同步追加，
// 助手消息在响应（或失败）后追加；会话切换时整体重建。
// Message 与 RowSet 只在本进程存活，持久化由后端负责。
type ConversationService interface {
	// Timeline 返回时间线的副本。
	Timeline(sessionKey string) []model.Message
	// Append 追加一条或多条消息。
	Append(sessionKey string, messages ...model.Message)
	// Replace 用历史回放结果整体替换时间线。
	Replace(sessionKey string, messages []model.Message)
	// BeginTurn 尝试开始一轮问答。同一会话已有在途轮次时返回 false，
	// 调用方应拒绝新的提交而不是排队。
	BeginTurn(sessionKey string) bool
	// EndTurn 结束在途轮次。
	EndTurn(sessionKey string)
}

type conversationService struct {
	mu        sync.Mutex
	timelines map[string][]model.Message
	inFlight  map[string]bool
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService() ConversationService {
	return &conversationService{
		timelines: make(map[string][]model.Message),
		inFlight:  make(map[string]bool),
	}
}

func (s *conversationService) Timeline(sessionKey string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	timeline := s.timelines[sessionKey]
	copied := make([]model.Message, len(timeline))
	copy(copied, timeline)
	return copied
}

func (s *conversationService) Append(sessionKey string, messages ...model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timelines[sessionKey] = append(s.timelines[sessionKey], messages...)
}

func (s *conversationService) Replace(sessionKey string, messages []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]model.Message, len(messages))
	copy(copied, messages)
	s.timelines[sessionKey] = copied
}

func (s *conversationService) BeginTurn(sessionKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[sessionKey] {
		return false
	}
	s.inFlight[sessionKey] = true
	return true
}

func (s *conversationService) EndTurn(sessionKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, sessionKey)
}
