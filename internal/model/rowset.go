package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row 是一行查询结果，列名到标量值的映射。
type Row map[string]interface{}

// RowSet 是一次查询的表格结果。列集合在所有行间一致，
// 列顺序取自后端返回的第一行的键顺序。
type RowSet struct {
	Columns []string
	Rows    []Row
}

// Empty 报告结果集是否为空。
func (rs RowSet) Empty() bool {
	return len(rs.Rows) == 0
}

// MarshalJSON 按列顺序将行集序列化为对象数组。
func (rs RowSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rs.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, col := range rs.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(row[col])
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// ParseRowSet 将后端返回的 JSON 对象数组解析为 RowSet，
// 并从第一个对象的原始字节中提取列顺序（map 解码会丢失顺序）。
func ParseRowSet(raw json.RawMessage) (RowSet, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return RowSet{}, fmt.Errorf("结果不是对象数组: %w", err)
	}
	rs := RowSet{}
	for i, elem := range elems {
		var row Row
		if err := json.Unmarshal(elem, &row); err != nil {
			return RowSet{}, fmt.Errorf("解析第 %d 行失败: %w", i, err)
		}
		if i == 0 {
			cols, err := columnOrder(elem)
			if err != nil {
				return RowSet{}, err
			}
			rs.Columns = cols
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

// columnOrder 以 token 流方式读取一个 JSON 对象的顶层键顺序。
func columnOrder(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("结果行不是 JSON 对象")
	}
	var cols []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("非法的对象键")
		}
		cols = append(cols, key)
		// 跳过对应的值（可能是嵌套结构）
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return cols, nil
}
