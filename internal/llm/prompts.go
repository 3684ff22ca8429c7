package llm

import (
	"fmt"
	"strings"
)

// Task 区分不同入口使用的 system prompt
type Task int

const (
	TaskAsk Task = iota
	TaskExplainCode
	TaskSimplifyCode
	TaskImproveWriting
	TaskSummarize
	TaskRewrite
	TaskDiagram
)

func (t Task) String() string {
	switch t {
	case TaskAsk:
		return "ask"
	case TaskExplainCode:
		return "explain"
	case TaskSimplifyCode:
		return "simplify"
	case TaskImproveWriting:
		return "writing"
	case TaskSummarize:
		return "summarize"
	case TaskRewrite:
		return "rewrite"
	case TaskDiagram:
		return "diagram"
	default:
		return "unknown"
	}
}

// ParseTask is the inverse of Task.String.
func ParseTask(s string) (Task, bool) {
	for t := TaskAsk; t <= TaskDiagram; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return TaskAsk, false
}

// Subject 是频道投递后提示消息里对结果的称呼
func (t Task) Subject() string {
	switch t {
	case TaskExplainCode:
		return "code explanation"
	case TaskSimplifyCode:
		return "simplified code"
	case TaskImproveWriting:
		return "improved text"
	case TaskSummarize:
		return "summary"
	case TaskRewrite:
		return "rewritten text"
	case TaskDiagram:
		return "diagram"
	default:
		return "response"
	}
}

// UserPrompt 生成发给模型的用户消息
func (t Task) UserPrompt(input string) string {
	switch t {
	case TaskExplainCode:
		return "Please explain this code:\n" + input
	case TaskImproveWriting:
		return "Please improve this text:\n" + input
	default:
		return input
	}
}

func (t Task) SystemPrompt() string {
	switch t {
	case TaskAsk:
		return guidelines("You are a helpful assistant in a Slack workspace. Be concise but informative.",
			"Use ```language\ncode``` for code blocks with proper language name (python, javascript, etc.)",
			"Use ```mermaid\n``` for diagram code",
			"For emphasis use *bold* and _italic_",
			"Use numbered lists (1. Item) and bullet points (• Item)",
			"Use clear section headers formatted in *bold*",
		)
	case TaskExplainCode:
		return guidelines("You are a coding assistant. Explain the following code clearly and technically.",
			"Use ```language\ncode``` for code blocks with proper language name (python, javascript, etc.)",
			"Use *bold* for important concepts and _italic_ for emphasis",
			"Use numbered lists (1. Item) for steps and bullet points (• Item) for features",
			"Use clear section headers formatted in *bold*",
			"Always specify the language when showing code blocks",
		)
	case TaskSimplifyCode:
		return guidelines("You are a coding assistant. Simplify and improve the following code while maintaining its functionality. Explain the improvements.",
			"Use ```language\ncode``` for code blocks with proper language name (python, javascript, etc.)",
			"Use *bold* for important concepts and _italic_ for emphasis",
			"Use numbered lists (1. Item) for steps and bullet points (• Item) for features",
			"Use clear section headers formatted in *bold*",
			"Always show your improved code in a code block with the correct language specified",
		)
	case TaskImproveWriting:
		return guidelines("You are a writing assistant. Improve the text to be more clear, concise, and professional while maintaining its core message.",
			"Use *bold* for important points and _italic_ for emphasis",
			"Use numbered lists (1. Item) for sequences and bullet points (• Item) for key points",
			"Use clear section headers formatted in *bold*",
			"If referencing code, use ```language\ncode``` syntax with proper language name",
			"Maintain good paragraph spacing for readability",
		)
	case TaskSummarize:
		return guidelines("You are a text summarization assistant. Summarize the following text concisely while preserving the key points.",
			"Use *bold* for important concepts and _italic_ for emphasis",
			"Use numbered lists (1. Item) for key points",
			"Use clear section headers formatted in *bold*",
			"Keep the summary clear and professional",
			"Maintain the original meaning while being concise",
		)
	case TaskRewrite:
		return guidelines("You are a text rewriting assistant. Rewrite the following text while preserving the core meaning.",
			"Use *bold* for important concepts and _italic_ for emphasis",
			"Use numbered lists (1. Item) for sequences and bullet points (• Item) for key points",
			"Use clear section headers formatted in *bold* if appropriate",
			"Separate paragraphs with a blank line",
			"Maintain appropriate tone and formatting for the requested style",
		)
	case TaskDiagram:
		return "You are a diagram expert. Generate valid Mermaid.js syntax for the requested diagram. " +
			"Only output the diagram code, nothing else. Ensure the syntax is correct and properly formatted."
	default:
		return guidelines("You are a helpful assistant.",
			"Use *bold* for important concepts and _italic_ for emphasis",
			"Use numbered lists (1. Item) for sequences and bullet points (• Item) for key points",
			"Use clear section headers formatted in *bold* if appropriate",
			"Separate paragraphs with a blank line",
			"Maintain appropriate tone and formatting",
		)
	}
}

func guidelines(intro string, rules ...string) string {
	var sb strings.Builder
	sb.WriteString(intro)
	sb.WriteString(" Format your responses for Slack with these guidelines:")
	for i, rule := range rules {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, rule)
	}
	return sb.String()
}

// DiagramSource 去掉模型可能包裹的 ```mermaid fence，返回纯 mermaid 语法
func DiagramSource(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
