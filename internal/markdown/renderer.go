package markdown

import (
	"html"
	"strings"
)

// RenderHTML 将块节点序列渲染为 HTML 片段。
// 连续的列表项合并为一个列表，有序列表保留原始起始编号。
func RenderHTML(blocks []Block) string {
	var b strings.Builder
	i := 0
	for i < len(blocks) {
		switch blocks[i].Kind {
		case BlockOrderedItem:
			start := orderedStart(blocks[i].Number)
			b.WriteString(`<ol start="` + start + `">`)
			for i < len(blocks) && blocks[i].Kind == BlockOrderedItem {
				b.WriteString("<li>")
				renderInlines(&b, blocks[i].Inlines)
				b.WriteString("</li>")
				i++
			}
			b.WriteString("</ol>")
		case BlockBulletItem:
			b.WriteString("<ul>")
			for i < len(blocks) && blocks[i].Kind == BlockBulletItem {
				b.WriteString("<li>")
				renderInlines(&b, blocks[i].Inlines)
				b.WriteString("</li>")
				i++
			}
			b.WriteString("</ul>")
		case BlockSpacer:
			b.WriteString("<br/>")
			i++
		default:
			b.WriteString("<p>")
			renderInlines(&b, blocks[i].Inlines)
			b.WriteString("</p>")
			i++
		}
	}
	return b.String()
}

// Render 是 Parse + RenderHTML 的便捷组合。
func Render(text string) string {
	return RenderHTML(Parse(text))
}

func renderInlines(b *strings.Builder, inlines []Inline) {
	for _, node := range inlines {
		switch node.Kind {
		case InlineBold:
			b.WriteString("<strong>" + html.EscapeString(node.Text) + "</strong>")
		case InlineItalic:
			b.WriteString("<em>" + html.EscapeString(node.Text) + "</em>")
		case InlineCode:
			b.WriteString("<code>" + html.EscapeString(node.Text) + "</code>")
		case InlineBreak:
			b.WriteString("<br/>")
		default:
			b.WriteString(html.EscapeString(node.Text))
		}
	}
}

// orderedStart 从 "3. " 形式的编号前缀中取出起始数字。
func orderedStart(number string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(number), ".")
	if trimmed == "" {
		return "1"
	}
	return trimmed
}
