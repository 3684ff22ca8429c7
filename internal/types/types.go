package types

// Labels 定义渲染时使用的固定文案和符号
type Labels struct {
	Bullet         string
	LanguageFormat string // fmt 格式，%s 为语言名
	Diagram        string
	DiagramAlt     string
}

// DefaultLabels 返回默认文案配置
func DefaultLabels() *Labels {
	return &Labels{
		Bullet:         "•",
		LanguageFormat: "Language: %s",
		Diagram:        "Mermaid Diagram",
		DiagramAlt:     "Rendered Mermaid diagram",
	}
}

// RenderConfig 渲染配置
type RenderConfig struct {
	Labels *Labels

	// ChunkSize is the per-block bound for prose text, in UTF-16 code units.
	// The platform limit is 3000; the margin leaves room for markup.
	ChunkSize int

	// DiagramKeyword is the fence tag that marks a diagram span.
	DiagramKeyword string

	// DiagramPreview appends an image block rendered by mermaid.ink after
	// each diagram.
	DiagramPreview bool
}

// DefaultRenderConfig 返回默认渲染配置
func DefaultRenderConfig() *RenderConfig {
	return &RenderConfig{
		Labels:         DefaultLabels(),
		ChunkSize:      2900,
		DiagramKeyword: "mermaid",
		DiagramPreview: false,
	}
}
