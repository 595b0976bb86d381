package model

import (
	"encoding/json"
	"time"
)

// 消息角色。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// historicalSentinel 是历史结果的占位符：行数已知但行数据未保留，
// 需要重新执行查询才能再次看到数据。
const historicalSentinel = "historical"

// PayloadKind 标记 ResultPayload 的取值分支。
type PayloadKind int

const (
	PayloadAbsent PayloadKind = iota
	PayloadRows
	PayloadHistorical
	PayloadFailed
)

// ResultPayload 是后端多态 results 字段归一化后的带标签联合：
// 要么缺失，要么是具体行集，要么是历史占位符，要么是子结果失败。
// 行集与历史占位符互斥，由构造函数保证。
type ResultPayload struct {
	kind PayloadKind
	rows RowSet
	err  *AppError
}

// AbsentResult 表示没有结果数据。
func AbsentResult() ResultPayload { return ResultPayload{kind: PayloadAbsent} }

// RowsResult 表示一个可展示、可导出的具体行集。
func RowsResult(rs RowSet) ResultPayload { return ResultPayload{kind: PayloadRows, rows: rs} }

// HistoricalResult 表示仅存行数的历史结果。
func HistoricalResult() ResultPayload { return ResultPayload{kind: PayloadHistorical} }

// FailedResult 表示后端结果子对象显式失败。
func FailedResult(err *AppError) ResultPayload {
	return ResultPayload{kind: PayloadFailed, err: err}
}

// Kind 返回分支标签。
func (p ResultPayload) Kind() PayloadKind { return p.kind }

// Rows 返回具体行集，仅当 Kind 为 PayloadRows 时 ok 为 true。
func (p ResultPayload) Rows() (RowSet, bool) { return p.rows, p.kind == PayloadRows }

// Err 返回子结果失败时的错误信封。
func (p ResultPayload) Err() *AppError { return p.err }

// IsHistorical 报告该结果是否为历史占位符。
func (p ResultPayload) IsHistorical() bool { return p.kind == PayloadHistorical }

// MarshalJSON 输出与前端约定一致的 results 取值：
// 行集为对象数组，历史结果为 "historical" 字面量，其余为 null。
func (p ResultPayload) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case PayloadRows:
		return json.Marshal(p.rows)
	case PayloadHistorical:
		return json.Marshal(historicalSentinel)
	default:
		return []byte("null"), nil
	}
}

// Message 是时间线上的一条展示单元，由实时问答或历史 QueryRecord 还原而来。
type Message struct {
	ID             string        `json:"id"`
	Role           string        `json:"role"`
	Content        string        `json:"content"`
	ContentHTML    string        `json:"contentHtml,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	GeneratedQuery string        `json:"sql,omitempty"`
	Results        ResultPayload `json:"results"`
	Error          *AppError     `json:"error,omitempty"`
	QueryRecordID  string        `json:"queryId,omitempty"`
	ResultRowCount int           `json:"resultRowCount,omitempty"`
	IsHistorical   bool          `json:"isHistorical,omitempty"`
}
