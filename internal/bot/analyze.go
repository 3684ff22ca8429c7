package bot

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/riverfjs/slackify-go"
	"github.com/riverfjs/slackify-go/internal/imaging"
	"github.com/riverfjs/slackify-go/internal/slackapi"
)

const (
	analyzeCommand      = "/analyze"
	analyzeCallbackID   = "analyze_file_modal"
	analyzeFileBlock    = "file_block"
	analyzeFileAction   = "file_input"
	analyzePromptBlock  = "prompt_block"
	analyzePromptAction = "prompt"
	analyzeSubject      = "image analysis"

	analyzeThreadText = "The `/analyze` command cannot be used in threads. Instead, you can:\n" +
		"1️⃣ Run `/analyze` in the main channel\n" +
		"2️⃣ Run `/analyze` in a direct message with me"
	analyzeIntroText  = "Upload an image to analyze. Supported formats:\n• Images (PNG, JPG, JPEG, GIF, WebP)"
	analyzeTypeText   = "Sorry, I can only analyze images (PNG, JPG, JPEG, GIF, WebP)."
	analyzeAccessText = "Sorry, I encountered an error while accessing the file. " +
		"Please make sure I have permission to access it and try again."
	analyzeErrorText = "Sorry, I encountered an error while analyzing the file. Please try again."
)

// analyzeFileTypes file_input 允许的扩展名
var analyzeFileTypes = []string{"png", "jpg", "jpeg", "gif", "webp"}

// slashThread 读取 slash command 原始 payload 中的 thread_ts，slack.SlashCommand 没有这个字段
func slashThread(req *socketmode.Request) string {
	if req == nil || len(req.Payload) == 0 {
		return ""
	}
	var p struct {
		ThreadTS string `json:"thread_ts"`
	}
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		return ""
	}
	return p.ThreadTS
}

func (b *Bot) handleAnalyze(ctx context.Context, log logrus.FieldLogger, cmd slack.SlashCommand, threadTS string) {
	if threadTS != "" {
		b.respond(ctx, log, cmd.UserID, cmd.ResponseURL, slackapi.Reply{
			Blocks: []slackify.Block{&slackify.Text{Markup: analyzeThreadText}},
		})
		return
	}
	if b.vision == nil {
		log.Error("no vision model configured")
		b.respond(ctx, log, cmd.UserID, cmd.ResponseURL, slackapi.Reply{Text: commandErrorText})
		return
	}

	if err := b.chat.OpenModal(ctx, cmd.TriggerID, analyzeView(modalMetadata{User: cmd.UserID})); err != nil {
		log.WithError(err).WithField("slack_error", slackapi.ErrorCode(err)).Error("failed to open analyze modal")
		b.respond(ctx, log, cmd.UserID, cmd.ResponseURL, slackapi.Reply{Text: commandErrorText})
		return
	}
	log.Debug("analyze modal opened")
}

func analyzeView(meta modalMetadata) slack.ModalViewRequest {
	file := slack.NewFileInputBlockElement(analyzeFileAction).
		WithFileTypes(analyzeFileTypes...).
		WithMaxFiles(1)
	prompt := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, "What would you like to know about this image?", false, false),
		analyzePromptAction,
	)
	promptBlock := slack.NewInputBlock(analyzePromptBlock,
		slack.NewTextBlockObject(slack.PlainTextType, "Analysis Prompt (optional)", false, false),
		nil, prompt).WithOptional(true)

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: analyzeCallbackID,
		Title:      slack.NewTextBlockObject(slack.PlainTextType, "Analyze File", false, false),
		Submit:     slack.NewTextBlockObject(slack.PlainTextType, "Analyze", false, false),
		Close:      slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, analyzeIntroText, false, false), nil, nil),
			slack.NewInputBlock(analyzeFileBlock,
				slack.NewTextBlockObject(slack.PlainTextType, "Upload an image", false, false),
				nil, file),
			promptBlock,
		}},
		PrivateMetadata: meta.encode(),
	}
}

// analyzeInput 读取提交的文件 ID 和问题
func analyzeInput(state *slack.ViewState) (fileID, prompt string) {
	if state == nil {
		return "", ""
	}
	if files := state.Values[analyzeFileBlock][analyzeFileAction].Files; len(files) > 0 {
		fileID = files[0].ID
	}
	return fileID, strings.TrimSpace(state.Values[analyzePromptBlock][analyzePromptAction].Value)
}

// submitAnalyze 结果和错误都私信给提交者
func (b *Bot) submitAnalyze(ctx context.Context, log logrus.FieldLogger, cb slack.InteractionCallback) {
	log = log.WithField("callback_id", analyzeCallbackID)

	user := cb.User.ID
	if meta, err := decodeMetadata(cb.View.PrivateMetadata); err == nil && meta.User != "" {
		user = meta.User
	}
	notify := func(text string) {
		if err := b.router.Notify(ctx, user, text); err != nil {
			log.WithError(err).Warn("analyze notice not sent")
		}
	}

	fileID, prompt := analyzeInput(cb.View.State)
	if fileID == "" {
		log.Warn("analyze submission without a file")
		notify(analyzeAccessText)
		return
	}
	log = log.WithField("file", fileID)
	if b.vision == nil {
		log.Error("no vision model configured")
		notify(analyzeErrorText)
		return
	}

	file, err := b.chat.FileInfo(ctx, fileID)
	if err != nil {
		log.WithError(err).WithField("slack_error", slackapi.ErrorCode(err)).Error("file info failed")
		notify(analyzeAccessText)
		return
	}
	if !strings.HasPrefix(file.MimeType, "image/") {
		log.WithField("mimetype", file.MimeType).Info("unsupported file type")
		notify(analyzeTypeText)
		return
	}

	data, err := b.chat.DownloadFile(ctx, file.URL)
	if err != nil {
		log.WithError(err).Error("file download failed")
		notify(analyzeAccessText)
		return
	}
	img, err := imaging.Prepare(data, imaging.MaxSide)
	if errors.Is(err, imaging.ErrUnsupported) {
		log.WithError(err).WithField("mimetype", file.MimeType).Info("image not decodable")
		notify(analyzeTypeText)
		return
	}
	if err != nil {
		log.WithError(err).Error("image preparation failed")
		notify(analyzeAccessText)
		return
	}
	log = log.WithFields(logrus.Fields{"width": img.Width, "height": img.Height})

	reply, err := b.vision.CompleteImage(ctx, prompt, img.DataURL())
	if err != nil {
		log.WithError(err).Error("image analysis failed")
		notify(analyzeErrorText)
		return
	}

	dc := slackify.NewDeliveryContext("", user, "").WithSubject(analyzeSubject)
	outcome, err := b.router.Deliver(ctx, b.format(reply), dc)
	log = log.WithField("outcome", outcome.String())
	if err != nil {
		log.WithError(err).Error("analysis not delivered")
		notify(analyzeErrorText)
		return
	}
	log.Info("analysis delivered")
}
