package bot

import (
	"encoding/json"
	"strings"

	"github.com/slack-go/slack"

	"github.com/riverfjs/slackify-go/internal/llm"
	"github.com/riverfjs/slackify-go/internal/parser"
)

// maxInitialValue plain_text_input 的默认长度上限
const maxInitialValue = 3000

// modal 描述一个单输入框的弹窗
type modal struct {
	callbackID  string
	title       string
	submit      string
	blockID     string
	actionID    string
	label       string
	placeholder string
	task        llm.Task
	// prefill 从触发消息生成初始值，nil 表示不预填
	prefill func(text string) string
}

var modals = map[string]modal{
	"ask_modal": {
		callbackID: "ask_modal", title: "Ask", submit: "Ask",
		blockID: "question_block", actionID: "question",
		label: "Question", placeholder: "What would you like to ask?",
		task: llm.TaskAsk,
	},
	"explain_code_modal": {
		callbackID: "explain_code_modal", title: "Explain Code", submit: "Explain",
		blockID: "code_block", actionID: "code",
		label: "Code", placeholder: "Paste your code here",
		task: llm.TaskExplainCode, prefill: codeOrText,
	},
	"simplify_code_modal": {
		callbackID: "simplify_code_modal", title: "Simplify Code", submit: "Simplify",
		blockID: "code_block", actionID: "code",
		label: "Code", placeholder: "Paste your code here",
		task: llm.TaskSimplifyCode, prefill: codeOrText,
	},
	"writing_assistant_modal": {
		callbackID: "writing_assistant_modal", title: "Writing Assistant", submit: "Improve",
		blockID: "text_block", actionID: "text",
		label: "Text", placeholder: "Enter the text you want to improve",
		task: llm.TaskImproveWriting, prefill: strings.TrimSpace,
	},
	"summarize_modal": {
		callbackID: "summarize_modal", title: "Summarize Text", submit: "Summarize",
		blockID: "text_block", actionID: "text",
		label: "Text", placeholder: "Enter the text you want to summarize",
		task: llm.TaskSummarize, prefill: strings.TrimSpace,
	},
	"rewrite_modal": {
		callbackID: "rewrite_modal", title: "Rewrite Text", submit: "Rewrite",
		blockID: "text_block", actionID: "text",
		label: "Text", placeholder: "Enter the text you want to rewrite",
		task: llm.TaskRewrite, prefill: strings.TrimSpace,
	},
}

// shortcuts 快捷方式 callback_id 到弹窗
var shortcuts = map[string]string{
	"ask_shortcut":               "ask_modal",
	"explain_code_shortcut":      "explain_code_modal",
	"simplify_code_shortcut":     "simplify_code_modal",
	"writing_assistant_shortcut": "writing_assistant_modal",
	"summarize_text_shortcut":    "summarize_modal",
	"rewrite_text_shortcut":      "rewrite_modal",
}

// modalMetadata 保存在 private_metadata 中，提交时用于路由
type modalMetadata struct {
	Channel  string `json:"channel"`
	ThreadTS string `json:"thread_ts,omitempty"`
	User     string `json:"user"`
}

func (m modalMetadata) encode() string {
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeMetadata(raw string) (modalMetadata, error) {
	var m modalMetadata
	if strings.TrimSpace(raw) == "" {
		return m, nil
	}
	err := json.Unmarshal([]byte(raw), &m)
	return m, err
}

func (m modal) view(initial string, meta modalMetadata) slack.ModalViewRequest {
	input := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, m.placeholder, false, false),
		m.actionID,
	).WithMultiline(true)
	if initial != "" {
		input = input.WithInitialValue(clip(initial, maxInitialValue))
	}

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: m.callbackID,
		Title:      slack.NewTextBlockObject(slack.PlainTextType, m.title, false, false),
		Submit:     slack.NewTextBlockObject(slack.PlainTextType, m.submit, false, false),
		Close:      slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewInputBlock(m.blockID,
				slack.NewTextBlockObject(slack.PlainTextType, m.label, false, false),
				nil, input),
		}},
		PrivateMetadata: meta.encode(),
	}
}

// value 读取提交的输入框内容
func (m modal) value(state *slack.ViewState) string {
	if state == nil {
		return ""
	}
	return strings.TrimSpace(state.Values[m.blockID][m.actionID].Value)
}

// codeOrText 优先使用消息中的第一个代码块
func codeOrText(text string) string {
	if block, ok := parser.FirstCodeBlock(text); ok && block.Code != "" {
		return block.Code
	}
	return strings.TrimSpace(text)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
