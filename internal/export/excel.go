package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"spend-insight-go/internal/model"
)

const sheetName = "Results"

// autoSizeSampleRows 参与列宽估算的行数上限。
const autoSizeSampleRows = 100

// ExcelExporter 基于 excelize 生成单 sheet 工作簿。
type ExcelExporter struct{}

// Export 写入表头和数据行，并按内容自动调整列宽。
func (ExcelExporter) Export(rs model.RowSet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("创建工作表失败: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("删除默认工作表失败: %w", err)
	}

	for i, col := range rs.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return nil, fmt.Errorf("写入表头失败: %w", err)
		}
	}
	for r, row := range rs.Rows {
		for i, col := range rs.Columns {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, row[col]); err != nil {
				return nil, fmt.Errorf("写入数据失败: %w", err)
			}
		}
	}

	if err := autoSizeColumns(f, rs); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("生成工作簿失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (ExcelExporter) Extension() string { return "xlsx" }

// autoSizeColumns 列宽取表头长度与前 100 行单元格字符串长度的最大值。
func autoSizeColumns(f *excelize.File, rs model.RowSet) error {
	sample := rs.Rows
	if len(sample) > autoSizeSampleRows {
		sample = sample[:autoSizeSampleRows]
	}
	for i, col := range rs.Columns {
		width := len(col)
		for _, row := range sample {
			if l := len(Stringify(row[col])); l > width {
				width = l
			}
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, name, name, float64(width)+2); err != nil {
			return fmt.Errorf("设置列宽失败: %w", err)
		}
	}
	return nil
}
