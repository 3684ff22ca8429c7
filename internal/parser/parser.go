package parser

import (
	"strings"
	"unicode/utf16"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/riverfjs/slackify-go/internal/converter"
	"github.com/riverfjs/slackify-go/internal/util"
)

// StandardOptions goldmark 扩展配置
var StandardOptions = []goldmark.Option{
	goldmark.WithExtensions(
		extension.GFM, // tables, strikethrough, tasklists, autolinks
	),
}

const ellipsis = "…"

// ParseAST 仅解析为 AST，不遍历
func ParseAST(markdown string) (ast.Node, []byte) {
	md := goldmark.New(StandardOptions...)
	source := []byte(markdown)
	return md.Parser().Parse(text.NewReader(source)), source
}

// CodeBlock 是从消息中提取出的代码块
type CodeBlock struct {
	Language string
	Code     string
}

// FirstCodeBlock 返回 markdown 中第一个代码块（fenced 或缩进式）。
// 聊天消息里常见的单行 ```code``` 在 CommonMark 中是 code span，
// 此时回退到 fence 正则匹配。
func FirstCodeBlock(markdown string) (CodeBlock, bool) {
	node, source := ParseAST(markdown)

	var (
		found CodeBlock
		ok    bool
	)
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || ok {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.FencedCodeBlock:
			found = CodeBlock{Language: string(n.Language(source)), Code: blockLines(n, source)}
			ok = true
			return ast.WalkStop, nil
		case *ast.CodeBlock:
			found = CodeBlock{Code: blockLines(n, source)}
			ok = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if ok {
		return found, true
	}

	if body, fenced := converter.FirstFenced(markdown); fenced {
		return CodeBlock{Code: strings.TrimSpace(body)}, true
	}
	return CodeBlock{}, false
}

// PlainText 将 markdown 渲染为纯文本，用作通知和无 block 客户端的回退文本。
// limit > 0 时按 UTF-16 长度截断并追加省略号。
func PlainText(markdown string, limit int) string {
	node, source := ParseAST(markdown)
	w := &plainWriter{source: source}
	_ = ast.Walk(node, w.walk)

	out := strings.TrimSpace(w.buf.String())
	if limit > 0 && util.UTF16Len(out) > limit {
		out = truncateUTF16(out, limit-util.UTF16Len(ellipsis)) + ellipsis
	}
	return out
}

type plainWriter struct {
	source []byte
	buf    strings.Builder
}

func (w *plainWriter) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n := node.(type) {
	case *ast.Text:
		if entering {
			w.buf.Write(n.Segment.Value(w.source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				w.buf.WriteByte('\n')
			}
		}

	case *ast.String:
		if entering {
			w.buf.Write(n.Value)
		}

	case *ast.AutoLink:
		if entering {
			w.buf.Write(n.URL(w.source))
			return ast.WalkSkipChildren, nil
		}

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			w.buf.WriteString(blockLines(n, w.source))
			w.newline()
			return ast.WalkSkipChildren, nil
		}

	case *ast.ListItem:
		if entering {
			w.buf.WriteString("• ")
		}

	case *east.TableCell:
		if !entering {
			w.buf.WriteByte(' ')
		}

	case *ast.Paragraph, *ast.Heading, *ast.TextBlock, *east.TableRow, *east.TableHeader:
		if !entering {
			w.newline()
		}

	case *ast.HTMLBlock, *ast.RawHTML:
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (w *plainWriter) newline() {
	s := w.buf.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		w.buf.WriteByte('\n')
	}
}

// blockLines 拼接代码块的原始行，去掉末尾换行
func blockLines(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(source))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// truncateUTF16 截断到最多 n 个 UTF-16 单位，不拆分字符
func truncateUTF16(s string, n int) string {
	if n <= 0 {
		return ""
	}
	units := 0
	for i, r := range s {
		size := utf16.RuneLen(r)
		if size < 0 {
			size = 1
		}
		if units+size > n {
			return s[:i]
		}
		units += size
	}
	return s
}
