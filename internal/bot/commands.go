package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/riverfjs/slackify-go"
	"github.com/riverfjs/slackify-go/internal/llm"
	"github.com/riverfjs/slackify-go/internal/mermaid"
	"github.com/riverfjs/slackify-go/internal/slackapi"
)

const (
	commandErrorText = "Sorry, I encountered an error while processing your request."
	diagramErrorText = "Sorry, I encountered an error while generating the diagram."
	diagramUsageText = "Please provide a description for the diagram. Example: `/diagram sequence diagram for user login`"
	diagramIntroText = "Here's your diagram:"
	diagramEditText  = "Edit in Mermaid Live: "
)

var errNoResponseURL = errors.New("no response url")

// commandTasks 斜杠命令到模型任务的映射
var commandTasks = map[string]llm.Task{
	"/ask":     llm.TaskAsk,
	"/explain": llm.TaskExplainCode,
	"/improve": llm.TaskImproveWriting,
	"/diagram": llm.TaskDiagram,
}

func (b *Bot) handleCommand(ctx context.Context, log logrus.FieldLogger, cmd slack.SlashCommand, threadTS string) {
	log = log.WithFields(logrus.Fields{
		"command": cmd.Command,
		"channel": cmd.ChannelID,
		"user":    cmd.UserID,
	})

	if cmd.Command == analyzeCommand {
		b.handleAnalyze(ctx, log, cmd, threadTS)
		return
	}
	task, ok := commandTasks[cmd.Command]
	if !ok {
		log.Warn("unknown slash command")
		return
	}
	if task == llm.TaskDiagram {
		b.handleDiagram(ctx, log, cmd)
		return
	}

	reply, err := llm.Run(ctx, b.llm, task, strings.TrimSpace(cmd.Text))
	if err != nil {
		log.WithError(err).Error("slash command failed")
		b.respond(ctx, log, cmd.UserID, cmd.ResponseURL, slackapi.Reply{Text: commandErrorText})
		return
	}
	b.respond(ctx, log, cmd.UserID, cmd.ResponseURL, slackapi.Reply{Blocks: b.format(reply)})
	log.Info("slash command answered")
}

func (b *Bot) handleDiagram(ctx context.Context, log logrus.FieldLogger, cmd slack.SlashCommand) {
	description := strings.TrimSpace(cmd.Text)
	if description == "" {
		b.respond(ctx, log, cmd.UserID, cmd.ResponseURL, slackapi.Reply{Text: diagramUsageText})
		return
	}

	reply, err := llm.Run(ctx, b.llm, llm.TaskDiagram, description)
	source := llm.DiagramSource(reply)
	if err == nil && source == "" {
		err = llm.ErrEmptyCompletion
	}
	if err != nil {
		log.WithError(err).Error("diagram generation failed")
		b.respond(ctx, log, cmd.UserID, cmd.ResponseURL, slackapi.Reply{Text: diagramErrorText})
		return
	}

	blocks := append([]slackify.Block{&slackify.Text{Markup: diagramIntroText}},
		b.format(fmt.Sprintf("```mermaid\n%s\n```", source))...)
	b.respond(ctx, log, cmd.UserID, cmd.ResponseURL, slackapi.Reply{Blocks: blocks})

	if b.diagramUpload {
		b.uploadDiagram(ctx, log, cmd.ChannelID, description, source)
	}
}

// uploadDiagram 渲染失败或上传失败只记录日志，代码块已经发送
func (b *Bot) uploadDiagram(ctx context.Context, log logrus.FieldLogger, channelID, title, source string) {
	img, editURL, err := b.renderer(ctx, source)
	if err != nil {
		log.WithError(err).Warn("diagram render failed")
		return
	}
	ext := mermaid.ImageFormat(img)
	if ext == "" {
		ext = "png"
	}
	err = b.chat.UploadFile(ctx, slackapi.Upload{
		ChannelID:      channelID,
		Filename:       "diagram." + ext,
		Title:          title,
		Data:           img,
		InitialComment: editComment(editURL),
	})
	if err != nil {
		log.WithError(err).WithField("slack_error", slackapi.ErrorCode(err)).Warn("diagram upload failed")
		return
	}
	log.WithField("bytes", len(img)).Info("diagram uploaded")
}

func editComment(editURL string) string {
	if editURL == "" {
		return ""
	}
	return diagramEditText + editURL
}

// respond 通过 response_url 回复；失败时（例如 URL 已过期）私信 userID 道歉
func (b *Bot) respond(ctx context.Context, log logrus.FieldLogger, userID, responseURL string, r slackapi.Reply) {
	err := errNoResponseURL
	if responseURL != "" {
		err = b.chat.Respond(ctx, responseURL, r)
	}
	if err == nil {
		return
	}
	log.WithError(err).WithField("slack_error", slackapi.ErrorCode(err)).Error("failed to respond")
	if nerr := b.router.Notify(ctx, userID, commandErrorText); nerr != nil {
		log.WithError(nerr).Warn("command apology not sent")
	}
}
