// Package markdown 将助手回复中的轻量标记解析为类型化的节点序列。
// 解析与渲染分离：Parse 产出块/行内节点，渲染器另行决定呈现方式。
package markdown

import (
	"strings"
	"unicode"
)

// InlineKind 标记行内节点类型。
type InlineKind int

const (
	InlineText InlineKind = iota
	InlineBold
	InlineItalic
	InlineCode
	InlineBreak
)

// Inline 是一个行内节点。Text 为节点内容，定界符不包含在内。
type Inline struct {
	Kind InlineKind
	Text string
}

// BlockKind 标记块级节点类型。
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockOrderedItem
	BlockBulletItem
	BlockSpacer
)

// Block 是一个块级节点。有序列表项保留原始编号（如 "3. "）。
type Block struct {
	Kind    BlockKind
	Number  string
	Inlines []Inline
}

// Parse 将整段文本逐行解析为块节点序列。
func Parse(text string) []Block {
	lines := strings.Split(text, "\n")
	var blocks []Block
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if number, rest, ok := splitOrderedItem(trimmed); ok {
			blocks = append(blocks, Block{Kind: BlockOrderedItem, Number: number, Inlines: ParseInline(rest)})
			continue
		}
		if rest, ok := splitBulletItem(trimmed); ok {
			blocks = append(blocks, Block{Kind: BlockBulletItem, Inlines: ParseInline(rest)})
			continue
		}
		if trimmed != "" {
			blocks = append(blocks, Block{Kind: BlockParagraph, Inlines: ParseInline(line)})
			continue
		}
		// 末尾空行不产生间隔
		if i < len(lines)-1 {
			blocks = append(blocks, Block{Kind: BlockSpacer})
		}
	}
	return blocks
}

// splitOrderedItem 匹配 "1. 内容" 形式的行，返回编号前缀和内容。
func splitOrderedItem(line string) (number, rest string, ok bool) {
	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i == 0 || i+1 >= len(line) || line[i] != '.' || line[i+1] != ' ' {
		return "", "", false
	}
	return line[:i+2], line[i+2:], true
}

// splitBulletItem 匹配 "- 内容" 或 "* 内容" 形式的行。
func splitBulletItem(line string) (rest string, ok bool) {
	if len(line) > 2 && (line[0] == '-' || line[0] == '*') && line[1] == ' ' {
		return line[2:], true
	}
	return "", false
}

// ParseInline 扫描一行文本，切分出加粗、斜体、行内代码与换行。
// 未闭合的定界符按普通文本处理。
func ParseInline(text string) []Inline {
	var nodes []Inline
	var plain strings.Builder

	flush := func() {
		if plain.Len() > 0 {
			nodes = append(nodes, Inline{Kind: InlineText, Text: plain.String()})
			plain.Reset()
		}
	}

	runes := []rune(text)
	i := 0
	for i < len(runes) {
		switch {
		case runes[i] == '\n':
			flush()
			nodes = append(nodes, Inline{Kind: InlineBreak})
			i++
		case runes[i] == '`':
			if end := indexFrom(runes, i+1, "`"); end >= 0 {
				flush()
				nodes = append(nodes, Inline{Kind: InlineCode, Text: string(runes[i+1 : end])})
				i = end + 1
			} else {
				plain.WriteRune(runes[i])
				i++
			}
		case i+1 < len(runes) && runes[i] == '*' && runes[i+1] == '*':
			if end := indexFrom(runes, i+2, "**"); end >= 0 {
				flush()
				nodes = append(nodes, Inline{Kind: InlineBold, Text: string(runes[i+2 : end])})
				i = end + 2
			} else {
				plain.WriteString("**")
				i += 2
			}
		case runes[i] == '*':
			if end := indexFrom(runes, i+1, "*"); end >= 0 {
				flush()
				nodes = append(nodes, Inline{Kind: InlineItalic, Text: string(runes[i+1 : end])})
				i = end + 1
			} else {
				plain.WriteRune(runes[i])
				i++
			}
		default:
			plain.WriteRune(runes[i])
			i++
		}
	}
	flush()
	return nodes
}

// indexFrom 从 start 开始查找定界符，返回其起始下标，找不到返回 -1。
func indexFrom(runes []rune, start int, delim string) int {
	d := []rune(delim)
	for i := start; i+len(d) <= len(runes); i++ {
		match := true
		for j := range d {
			if runes[i+j] != d[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
