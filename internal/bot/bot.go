package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/riverfjs/slackify-go"
	"github.com/riverfjs/slackify-go/internal/llm"
	"github.com/riverfjs/slackify-go/internal/mermaid"
	"github.com/riverfjs/slackify-go/internal/slackapi"
)

// handlerTimeout 单个事件的处理上限（包含模型调用）
const handlerTimeout = 2 * time.Minute

// ErrNotConnected is reported by Ready before the socket-mode connection is up.
var ErrNotConnected = errors.New("socket mode not connected")

// Chat 是机器人使用的 Slack 调用集合，由 slackapi.Client 实现
type Chat interface {
	slackify.Platform
	PostThreadText(ctx context.Context, channelID, threadID, text string) error
	AddReaction(ctx context.Context, channelID, timestamp, name string) error
	RemoveReaction(ctx context.Context, channelID, timestamp, name string) error
	BotUserID(ctx context.Context) (string, error)
	OpenModal(ctx context.Context, triggerID string, view slack.ModalViewRequest) error
	UploadFile(ctx context.Context, u slackapi.Upload) error
	Respond(ctx context.Context, responseURL string, r slackapi.Reply) error
	FileInfo(ctx context.Context, fileID string) (slackapi.File, error)
	DownloadFile(ctx context.Context, url string) ([]byte, error)
}

var _ Chat = (*slackapi.Client)(nil)

// DiagramRenderer 将 mermaid 源码渲染为图片，同时返回在线编辑链接
type DiagramRenderer func(ctx context.Context, source string) (img []byte, editURL string, err error)

// Config wires a Bot to Slack and the language model. Chat and Completer
// are required.
type Config struct {
	Chat      Chat
	Completer llm.Completer
	// Vision 处理 /analyze；为空时若 Completer 同时实现 VisionCompleter 则使用它
	Vision llm.VisionCompleter
	Logger logrus.FieldLogger
	// BotUserID 为空时在 Run 中通过 auth.test 获取
	BotUserID string
	Render    []slackify.Option
	// DiagramUpload 为 /diagram 上传渲染后的图片
	DiagramUpload bool
	Renderer      DiagramRenderer
}

// Bot answers mentions, direct messages, slash commands and shortcuts.
// Each socket-mode event is acknowledged first and handled on its own
// goroutine.
type Bot struct {
	chat          Chat
	llm           llm.Completer
	vision        llm.VisionCompleter
	router        *slackify.Router
	logger        logrus.FieldLogger
	botUserID     string
	render        []slackify.Option
	diagramUpload bool
	renderer      DiagramRenderer

	connected atomic.Bool
	wg        sync.WaitGroup
}

// New creates a Bot from cfg. It does not contact Slack; the bot user is
// resolved in Run when Config.BotUserID is empty.
func New(cfg Config) *Bot {
	logger := cfg.Logger
	if logger == nil {
		logger = slackify.Logger
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = defaultRenderer(&http.Client{Timeout: 15 * time.Second})
	}
	vision := cfg.Vision
	if vc, ok := cfg.Completer.(llm.VisionCompleter); ok && vision == nil {
		vision = vc
	}
	return &Bot{
		chat:          cfg.Chat,
		llm:           cfg.Completer,
		vision:        vision,
		router:        slackify.NewRouter(cfg.Chat, slackify.WithRouterLogger(logger)),
		logger:        logger,
		botUserID:     cfg.BotUserID,
		render:        cfg.Render,
		diagramUpload: cfg.DiagramUpload,
		renderer:      renderer,
	}
}

func defaultRenderer(client *http.Client) DiagramRenderer {
	return func(ctx context.Context, source string) ([]byte, string, error) {
		img, editURL, err := mermaid.RenderMermaid(ctx, source, nil, client)
		if err != nil {
			return nil, "", err
		}
		return img.Bytes(), editURL, nil
	}
}

// Run 连接 socket mode 并处理事件，直到 ctx 结束
func (b *Bot) Run(ctx context.Context, sm *socketmode.Client) error {
	if b.botUserID == "" {
		id, err := b.chat.BotUserID(ctx)
		if err != nil {
			return fmt.Errorf("resolve bot user: %w", err)
		}
		b.botUserID = id
	}
	b.logger.WithField("bot_user", b.botUserID).Info("starting socket mode")

	errCh := make(chan error, 1)
	go func() {
		errCh <- sm.RunContext(ctx)
	}()

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("socket mode: %w", err)
		case evt, ok := <-sm.Events:
			if !ok {
				return nil
			}
			b.Dispatch(ctx, evt, func(req socketmode.Request) {
				sm.Ack(req)
			})
		}
	}
}

// Wait blocks until every in-flight handler returned.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// Ready 供 /ready 探测
func (b *Bot) Ready(context.Context) error {
	if !b.connected.Load() {
		return ErrNotConnected
	}
	return nil
}

// Dispatch 确认（ack）请求并在独立 goroutine 中处理事件
func (b *Bot) Dispatch(ctx context.Context, evt socketmode.Event, ack func(socketmode.Request)) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.logger.Info("connecting to Slack with socket mode")
	case socketmode.EventTypeConnected:
		b.connected.Store(true)
		b.logger.Info("connected to Slack with socket mode")
	case socketmode.EventTypeConnectionError, socketmode.EventTypeDisconnect:
		b.connected.Store(false)
		b.logger.WithField("type", string(evt.Type)).Warn("socket mode connection lost")
	case socketmode.EventTypeInvalidAuth:
		b.connected.Store(false)
		b.logger.Error("socket mode authentication failed")

	case socketmode.EventTypeEventsAPI:
		ackRequest(evt, ack)
		data, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			b.logger.WithField("data", fmt.Sprintf("%T", evt.Data)).Warn("unexpected events api payload")
			return
		}
		b.spawn(ctx, "events_api", func(ctx context.Context, log logrus.FieldLogger) {
			b.handleEventsAPI(ctx, log, data)
		})

	case socketmode.EventTypeSlashCommand:
		ackRequest(evt, ack)
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			b.logger.WithField("data", fmt.Sprintf("%T", evt.Data)).Warn("unexpected slash command payload")
			return
		}
		threadTS := slashThread(evt.Request)
		b.spawn(ctx, "slash_command", func(ctx context.Context, log logrus.FieldLogger) {
			b.handleCommand(ctx, log, cmd, threadTS)
		})

	case socketmode.EventTypeInteractive:
		ackRequest(evt, ack)
		cb, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			b.logger.WithField("data", fmt.Sprintf("%T", evt.Data)).Warn("unexpected interaction payload")
			return
		}
		b.spawn(ctx, "interactive", func(ctx context.Context, log logrus.FieldLogger) {
			b.handleInteraction(ctx, log, cb)
		})

	default:
		b.logger.WithField("type", string(evt.Type)).Debug("ignored socket mode event")
	}
}

func ackRequest(evt socketmode.Event, ack func(socketmode.Request)) {
	if evt.Request != nil && ack != nil {
		ack(*evt.Request)
	}
}

// spawn 每个事件使用独立 goroutine、独立 event_id 和超时
func (b *Bot) spawn(ctx context.Context, kind string, fn func(ctx context.Context, log logrus.FieldLogger)) {
	log := b.logger.WithFields(logrus.Fields{
		"event_id": uuid.NewString(),
		"kind":     kind,
	})
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("handler panicked")
			}
		}()
		hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()
		fn(hctx, log)
	}()
}

// format 使用配置的渲染选项生成 block
func (b *Bot) format(content string) []slackify.Block {
	return slackify.FormatContent(content, b.render...)
}
