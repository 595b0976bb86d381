// Package export 将查询结果行集转换为可下载的表格输出。
package export

import (
	"fmt"
	"strconv"
	"strings"

	"spend-insight-go/internal/model"
)

// WriteDelimited 将行集序列化为逗号分隔文本。
// 首行为列名；包含逗号或双引号的字段用双引号包裹，内部引号成对转义；
// 空值渲染为空串；行序保持不变。
func WriteDelimited(rs model.RowSet) []byte {
	var b strings.Builder
	for i, col := range rs.Columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quoteField(col))
	}
	for _, row := range rs.Rows {
		b.WriteByte('\n')
		for i, col := range rs.Columns {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quoteField(Stringify(row[col])))
		}
	}
	return []byte(b.String())
}

// quoteField 仅在字段包含逗号或双引号时加引号，内部引号翻倍。
func quoteField(field string) string {
	if strings.ContainsAny(field, ",\"") {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return field
}

// Stringify 将单元格的标量值转为字符串。nil 渲染为空串。
func Stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseDelimited 解析 WriteDelimited 的输出。字段内嵌换行不在支持范围内。
func ParseDelimited(data []byte) (model.RowSet, error) {
	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return model.RowSet{}, nil
	}
	columns, err := splitDelimitedLine(lines[0])
	if err != nil {
		return model.RowSet{}, fmt.Errorf("解析表头失败: %w", err)
	}
	rs := model.RowSet{Columns: columns}
	for n, line := range lines[1:] {
		fields, err := splitDelimitedLine(line)
		if err != nil {
			return model.RowSet{}, fmt.Errorf("解析第 %d 行失败: %w", n+1, err)
		}
		if len(fields) != len(columns) {
			return model.RowSet{}, fmt.Errorf("第 %d 行字段数 %d 与列数 %d 不符", n+1, len(fields), len(columns))
		}
		row := model.Row{}
		for i, col := range columns {
			row[col] = fields[i]
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

// splitDelimitedLine 按引号语义切分一行。
func splitDelimitedLine(line string) ([]string, error) {
	var fields []string
	var field strings.Builder
	inQuotes := false
	i := 0
	for i < len(line) {
		ch := line[i]
		switch {
		case inQuotes && ch == '"':
			if i+1 < len(line) && line[i+1] == '"' {
				field.WriteByte('"')
				i += 2
			} else {
				inQuotes = false
				i++
			}
		case !inQuotes && ch == '"':
			if field.Len() > 0 {
				return nil, fmt.Errorf("字段中间出现未转义引号")
			}
			inQuotes = true
			i++
		case !inQuotes && ch == ',':
			fields = append(fields, field.String())
			field.Reset()
			i++
		default:
			field.WriteByte(ch)
			i++
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("引号未闭合")
	}
	fields = append(fields, field.String())
	return fields, nil
}
