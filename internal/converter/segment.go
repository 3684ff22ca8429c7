package converter

import (
	"regexp"
	"strings"
)

// Kind 表示 segment 的内容类型
type Kind int

const (
	// KindProse is ordinary text, subject to markdown normalization.
	KindProse Kind = iota
	// KindCode is a fenced code span.
	KindCode
	// KindDiagram is a fenced span tagged with the diagram keyword.
	KindDiagram
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindProse:
		return "prose"
	case KindCode:
		return "code"
	case KindDiagram:
		return "diagram"
	default:
		return "unknown"
	}
}

// FenceMarker opens and closes a fenced span.
const FenceMarker = "```"

// fenceRe 匹配 ```tag\n...``` 形式的代码块。tag 和换行都是可选的，
// 正文使用非贪婪匹配，因此第一个闭合 fence 即结束该片段（不支持嵌套）。
var fenceRe = regexp.MustCompile("```(\\w*)(\\n?)([\\s\\S]*?)```")

// Segment 记录原文中一段连续的 prose / code / diagram 内容
type Segment struct {
	Kind     Kind
	Language string // 仅 KindCode 使用，空字符串表示未指定语言
	Body     string // fence 内部内容（不含 fence）
	Fence    string // 原始的开头 fence，例如 "```Python\n"；prose 为空
}

// Raw re-applies the original fence so that concatenating Raw() over the
// result of Split reproduces the input exactly.
func (s Segment) Raw() string {
	if s.Kind == KindProse {
		return s.Body
	}
	return s.Fence + s.Body + FenceMarker
}

// Split 将文本按 fenced span 拆分为有序的 Segment 列表
//
// 规则：
//   - 两个 fence 之间（或之前、之后）的非空文本为 prose
//   - tag（去空格、小写）等于 diagramKeyword 时为 diagram
//   - 其余为 code，Language 为小写 tag
//   - 未闭合的 fence 保留为 prose
func Split(text string, diagramKeyword string) []Segment {
	segments := make([]Segment, 0)
	if text == "" {
		return segments
	}
	keyword := strings.ToLower(strings.TrimSpace(diagramKeyword))

	cursor := 0
	for _, m := range fenceRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		if start > cursor {
			segments = append(segments, Segment{Kind: KindProse, Body: text[cursor:start]})
		}

		tag := text[m[2]:m[3]]
		fence := text[start:m[5]]
		body := text[m[6]:m[7]]
		lang := strings.ToLower(strings.TrimSpace(tag))

		if keyword != "" && lang == keyword {
			segments = append(segments, Segment{Kind: KindDiagram, Body: body, Fence: fence})
		} else {
			segments = append(segments, Segment{Kind: KindCode, Language: lang, Body: body, Fence: fence})
		}
		cursor = end
	}

	if cursor < len(text) {
		segments = append(segments, Segment{Kind: KindProse, Body: text[cursor:]})
	}
	return segments
}

// FirstFenced returns the body of the first fenced span in text, if any.
// 单行形式 ```code``` 没有换行，此时 tag 属于正文。
func FirstFenced(text string) (string, bool) {
	m := fenceRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if m[2] == "" {
		return m[1] + m[3], true
	}
	return m[3], true
}
