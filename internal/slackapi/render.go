package slackapi

import (
	"strings"

	"github.com/slack-go/slack"

	"github.com/riverfjs/slackify-go"
	"github.com/riverfjs/slackify-go/internal/parser"
)

const (
	// MaxBlocksPerMessage 是单条消息允许的最大 block 数
	MaxBlocksPerMessage = 50
	// fallbackTextLimit 通知预览文本的长度上限
	fallbackTextLimit = 3000
)

// RenderBlocks 将平台无关的 display block 转换为 Slack Block Kit
//
//	Divider → divider
//	Label   → context（粗体 mrkdwn）
//	Text    → section（mrkdwn）
//	Image   → image
func RenderBlocks(blocks []slackify.Block) []slack.Block {
	out := make([]slack.Block, 0, len(blocks))
	for _, b := range blocks {
		switch v := b.(type) {
		case *slackify.Divider:
			out = append(out, slack.NewDividerBlock())
		case *slackify.Label:
			out = append(out, slack.NewContextBlock("",
				slack.NewTextBlockObject(slack.MarkdownType, "*"+v.Text+"*", false, false)))
		case *slackify.Text:
			out = append(out, slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, v.Markup, false, false), nil, nil))
		case *slackify.Image:
			out = append(out, slack.NewImageBlock(v.URL, v.AltText, "", nil))
		}
	}
	return out
}

// Batches 按单条消息的 block 上限分组
func Batches(blocks []slack.Block) [][]slack.Block {
	if len(blocks) == 0 {
		return nil
	}
	batches := make([][]slack.Block, 0, (len(blocks)+MaxBlocksPerMessage-1)/MaxBlocksPerMessage)
	for start := 0; start < len(blocks); start += MaxBlocksPerMessage {
		end := min(start+MaxBlocksPerMessage, len(blocks))
		batches = append(batches, blocks[start:end])
	}
	return batches
}

// FallbackText 生成通知和不支持 block 的客户端使用的纯文本
func FallbackText(blocks []slackify.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch v := b.(type) {
		case *slackify.Label:
			parts = append(parts, v.Text)
		case *slackify.Text:
			parts = append(parts, v.Markup)
		}
	}
	return parser.PlainText(strings.Join(parts, "\n\n"), fallbackTextLimit)
}
