package model

import "time"

// Session 代表一个命名的对话会话，由后端持有，网关只保留活动会话的缓存副本。
type Session struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"sessionName"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
	QueryCount  int       `json:"queryCount,omitempty"`
}

// QueryRecord 是后端持久化的一次问答记录，对本层只读。
type QueryRecord struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId"`
	Question       string    `json:"question"`
	GeneratedQuery string    `json:"generatedSql"`
	Explanation    string    `json:"explanation"`
	ResultRowCount int       `json:"resultRowCount"`
	ExecutionError string    `json:"executionError"`
	CreatedAt      time.Time `json:"createdAt"`
}
