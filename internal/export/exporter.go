package export

import (
	"spend-insight-go/internal/model"
	"spend-insight-go/pkg/log"
)

// TabularExporter 是表格导出能力的接口。
// 分隔文本实现永远可用；电子表格实现是可选能力，失败时由调用方回退。
type TabularExporter interface {
	Export(rs model.RowSet) ([]byte, error)
	ContentType() string
	Extension() string
}

// CSVExporter 是始终可用的分隔文本导出实现。
type CSVExporter struct{}

func (CSVExporter) Export(rs model.RowSet) ([]byte, error) {
	return WriteDelimited(rs), nil
}

func (CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

func (CSVExporter) Extension() string { return "csv" }

// ExportWithFallback 用首选导出器导出行集，任何失败都静默降级为分隔文本。
// 返回实际使用的导出器以便调用方决定扩展名与 Content-Type。
func ExportWithFallback(preferred TabularExporter, rs model.RowSet) ([]byte, TabularExporter) {
	data, err := preferred.Export(rs)
	if err != nil {
		log.Warnf("[Export] %s 导出失败，降级为分隔文本: %v", preferred.Extension(), err)
		fallback := CSVExporter{}
		data, _ = fallback.Export(rs)
		return data, fallback
	}
	return data, preferred
}
