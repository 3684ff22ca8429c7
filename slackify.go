// Package slackify 将语言模型的 Markdown 回复转换为 Slack display block 并投递
//
// 这个包提供了把原始模型输出（代码块、Mermaid 图、轻量 Markdown）
// 转换为 Slack 可直接渲染的 block 列表，以及按权限投递到频道或私信的功能。
//
// 核心功能：
//   - 按 fence 拆分为 prose / code / diagram 片段
//   - 将 Markdown 标题、列表、强调转换为 mrkdwn
//   - 将过长的文本按段落、句子拆分为不超过 2900 个字符的块
//   - 频道投递失败时自动加入频道或回退到私信
//
// 主要 API：
//   - FormatContent(): 文本 → []Block
//   - Router.Deliver(): []Block + DeliveryContext → Outcome
//
// 示例：
//
//	blocks := slackify.FormatContent(reply)
//	router := slackify.NewRouter(platform)
//	dc := slackify.NewDeliveryContext(channelID, userID, threadTS)
//	outcome, err := router.Deliver(ctx, blocks, dc)
//	if outcome == slackify.OutcomeFailed {
//	    // 通知用户
//	}
package slackify

// FormatContent 将模型回复转换为有序的 display block 列表
//
// 参数：
//   - content: 模型的原始回复
//   - opts: 格式化选项（分块大小、图表预览、自定义配置）
//
// 返回：
//   - []Block: Divider、Label、Text（可选 Image）的有序列表；空输入返回空列表
func FormatContent(content string, opts ...Option) []Block {
	config := applyOptions(opts...)
	return Assemble(SplitSegments(content, WithConfig(config)), config)
}
