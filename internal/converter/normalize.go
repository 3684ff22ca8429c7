package converter

import (
	"regexp"
	"strings"
)

var (
	// # / ## / ### 标题（最多三级，后跟空格）
	headingRe = regexp.MustCompile(`(?m)^(#{1,3}) (.*)$`)

	// 无序列表 "- item"
	bulletRe = regexp.MustCompile(`(?m)^- `)

	// **bold** → *bold*
	doubleStarRe = regexp.MustCompile(`\*\*(.*?)\*\*`)

	// __italic__ → _italic_
	doubleUnderscoreRe = regexp.MustCompile(`__(.*?)__`)

	// 三个及以上连续换行
	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

// maxNormalizePasses bounds the fixpoint loop in Normalize. Every pass
// either shrinks the text or removes a heading/list marker, so real input
// settles within two or three passes.
const maxNormalizePasses = 16

// Normalize 将轻量 Markdown 转换为 Slack mrkdwn
//
// 按顺序执行：
//  1. 标题行 → *粗体*（去掉内部 **），一级标题额外追加一个空行
//  2. 有序列表保持不变
//  3. "- " 列表项 → bullet 符号
//  4. **x** → *x*，__x__ → _x_
//  5. 三个以上换行折叠为两个，去掉首尾空白
//
// 整套规则重复执行直到结果不再变化，因此 Normalize(Normalize(x)) == Normalize(x)。
func Normalize(prose string, bullet string) string {
	out := prose
	for i := 0; i < maxNormalizePasses; i++ {
		next := normalizeOnce(out, bullet)
		if next == out {
			return next
		}
		out = next
	}
	return out
}

func normalizeOnce(text string, bullet string) string {
	text = headingRe.ReplaceAllStringFunc(text, func(line string) string {
		m := headingRe.FindStringSubmatch(line)
		// 整行已加粗，去掉内部的 ** 避免嵌套
		title := strings.ReplaceAll(m[2], "**", "")
		if len(m[1]) == 1 {
			return "*" + title + "*\n"
		}
		return "*" + title + "*"
	})

	text = bulletRe.ReplaceAllLiteralString(text, bullet+" ")

	text = doubleStarRe.ReplaceAllString(text, "*$1*")
	text = doubleUnderscoreRe.ReplaceAllString(text, "_${1}_")

	text = blankRunRe.ReplaceAllLiteralString(text, "\n\n")
	return strings.TrimSpace(text)
}
