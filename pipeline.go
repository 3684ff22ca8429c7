package slackify

import (
	"fmt"
	"strings"

	"github.com/riverfjs/slackify-go/internal/converter"
	"github.com/riverfjs/slackify-go/internal/mermaid"
)

// 导出 segment 类型
type Segment = converter.Segment
type SegmentKind = converter.Kind

const (
	SegmentProse   = converter.KindProse
	SegmentCode    = converter.KindCode
	SegmentDiagram = converter.KindDiagram
)

// SplitSegments 将原始文本拆分为有序的 prose / code / diagram 片段
func SplitSegments(content string, opts ...Option) []Segment {
	config := applyOptions(opts...)
	return converter.Split(content, config.DiagramKeyword)
}

// NormalizeMarkdown 将 prose 中的轻量 Markdown 转换为 Slack mrkdwn
func NormalizeMarkdown(prose string, opts ...Option) string {
	config := applyOptions(opts...)
	return converter.Normalize(prose, config.Labels.Bullet)
}

// Assemble 按 segment 顺序生成 display block 列表
//
//   - code → [Divider] [Label "Language: x"] Text(带 fence 的代码)
//   - diagram → [Divider] Label Text(```mermaid ...) [Image 预览]
//   - prose → Normalize 后按 ChunkSize 拆分，每块一个 Text
//
// Divider 只在列表非空时添加，末尾不加 Divider。
func Assemble(segments []Segment, config *RenderConfig) []Block {
	config = applyOptions(WithConfig(config))

	blocks := make([]Block, 0, len(segments))
	for _, seg := range segments {
		switch seg.Kind {
		case converter.KindCode:
			blocks = appendCode(blocks, seg, config)
		case converter.KindDiagram:
			blocks = appendDiagram(blocks, seg, config)
		default:
			blocks = appendProse(blocks, seg, config)
		}
	}
	return blocks
}

func appendCode(blocks []Block, seg Segment, config *RenderConfig) []Block {
	if len(blocks) > 0 {
		blocks = append(blocks, &Divider{})
	}
	if seg.Language != "" {
		blocks = append(blocks, &Label{Text: fmt.Sprintf(config.Labels.LanguageFormat, seg.Language)})
	}
	return append(blocks, &Text{Markup: fence(seg.Language, seg.Body)})
}

func appendDiagram(blocks []Block, seg Segment, config *RenderConfig) []Block {
	if len(blocks) > 0 {
		blocks = append(blocks, &Divider{})
	}
	blocks = append(blocks,
		&Label{Text: config.Labels.Diagram},
		&Text{Markup: fence(config.DiagramKeyword, seg.Body)},
	)

	if !config.DiagramPreview {
		return blocks
	}
	url, err := mermaid.GetMermaidInkURL(seg.Body, nil)
	if err != nil {
		Logger.WithError(err).Warn("diagram preview skipped")
		return blocks
	}
	return append(blocks, &Image{URL: url, AltText: config.Labels.DiagramAlt})
}

func appendProse(blocks []Block, seg Segment, config *RenderConfig) []Block {
	formatted := converter.Normalize(seg.Body, config.Labels.Bullet)
	if formatted == "" {
		return blocks
	}
	for _, chunk := range SplitText(formatted, config.ChunkSize) {
		blocks = append(blocks, &Text{Markup: chunk})
	}
	return blocks
}

// fence wraps body in a fenced span tagged with tag. The closing fence
// always starts on its own line.
func fence(tag, body string) string {
	var sb strings.Builder
	sb.WriteString(converter.FenceMarker)
	sb.WriteString(tag)
	sb.WriteString("\n")
	sb.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString(converter.FenceMarker)
	return sb.String()
}
