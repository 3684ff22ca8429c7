package slackify

import "github.com/riverfjs/slackify-go/internal/util"

// CountText 计算文本在 Slack 中的有效长度（UTF-16 code units）
//
// 所有分块上限都按这个单位计算，与平台及其 JavaScript 客户端的字符串长度一致。
func CountText(text string) int {
	return util.UTF16Len(text)
}
