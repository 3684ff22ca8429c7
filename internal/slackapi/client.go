package slackapi

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/riverfjs/slackify-go"
)

// Client 基于 slack-go 实现 slackify.Platform，并提供机器人需要的其他调用
type Client struct {
	api    *slack.Client
	logger logrus.FieldLogger
}

var _ slackify.Platform = (*Client)(nil)

// New creates a Client around an existing slack-go client.
func New(api *slack.Client, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = slackify.Logger
	}
	return &Client{api: api, logger: logger}
}

// OpenDM 打开（或复用）与 userID 的私聊，返回会话 ID
func (c *Client) OpenDM(ctx context.Context, userID string) (string, error) {
	ch, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users:    []string{userID},
		ReturnIM: true,
	})
	if err != nil {
		return "", mapError("conversations.open", err)
	}
	return ch.ID, nil
}

// PostBlocks 发送 display block；超过单条上限时拆成多条消息顺序发送
func (c *Client) PostBlocks(ctx context.Context, channelID string, blocks []slackify.Block, threadID string) error {
	rendered := RenderBlocks(blocks)
	text := FallbackText(blocks)

	batches := Batches(rendered)
	if len(batches) == 0 {
		batches = [][]slack.Block{nil}
	}
	for i, batch := range batches {
		opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
		if len(batch) > 0 {
			opts = append(opts, slack.MsgOptionBlocks(batch...))
		}
		if threadID != "" {
			opts = append(opts, slack.MsgOptionTS(threadID))
		}
		if _, _, err := c.api.PostMessageContext(ctx, channelID, opts...); err != nil {
			return mapError(fmt.Sprintf("chat.postMessage (%d/%d)", i+1, len(batches)), err)
		}
	}
	return nil
}

// PostText 发送纯文本消息
func (c *Client) PostText(ctx context.Context, channelID, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	return mapError("chat.postMessage", err)
}

// PostThreadText 在线程中发送纯文本消息
func (c *Client) PostThreadText(ctx context.Context, channelID, threadID, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadID != "" {
		opts = append(opts, slack.MsgOptionTS(threadID))
	}
	_, _, err := c.api.PostMessageContext(ctx, channelID, opts...)
	return mapError("chat.postMessage", err)
}

// ChannelInfo 读取频道信息
func (c *Client) ChannelInfo(ctx context.Context, channelID string) (slackify.ChannelInfo, error) {
	ch, err := c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		return slackify.ChannelInfo{}, mapError("conversations.info", err)
	}
	return slackify.ChannelInfo{ID: ch.ID, Name: ch.Name, IsMember: ch.IsMember}, nil
}

// JoinChannel 加入频道
func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	_, warning, _, err := c.api.JoinConversationContext(ctx, channelID)
	if err != nil {
		return mapError("conversations.join", err)
	}
	if warning != "" {
		c.logger.WithField("channel", channelID).Warnf("join warning: %s", warning)
	}
	return nil
}

// AddReaction 为消息添加 emoji reaction
func (c *Client) AddReaction(ctx context.Context, channelID, timestamp, name string) error {
	return mapError("reactions.add", c.api.AddReactionContext(ctx, name, slack.NewRefToMessage(channelID, timestamp)))
}

// RemoveReaction 移除消息上的 emoji reaction
func (c *Client) RemoveReaction(ctx context.Context, channelID, timestamp, name string) error {
	return mapError("reactions.remove", c.api.RemoveReactionContext(ctx, name, slack.NewRefToMessage(channelID, timestamp)))
}

// BotUserID 返回当前 token 对应的用户 ID
func (c *Client) BotUserID(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", mapError("auth.test", err)
	}
	return resp.UserID, nil
}

// OpenModal 通过 trigger ID 打开 modal
func (c *Client) OpenModal(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	_, err := c.api.OpenViewContext(ctx, triggerID, view)
	return mapError("views.open", err)
}

// Upload 描述一次文件上传
type Upload struct {
	ChannelID      string
	ThreadID       string
	Filename       string
	Title          string
	InitialComment string
	Data           []byte
}

// UploadFile 上传文件到频道
func (c *Client) UploadFile(ctx context.Context, u Upload) error {
	_, err := c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Reader:          bytes.NewReader(u.Data),
		FileSize:        len(u.Data),
		Filename:        u.Filename,
		Title:           u.Title,
		InitialComment:  u.InitialComment,
		Channel:         u.ChannelID,
		ThreadTimestamp: u.ThreadID,
	})
	return mapError("files.upload", err)
}

// Reply 是通过 response_url 回复 slash command / shortcut 的消息
type Reply struct {
	Blocks    []slackify.Block
	Text      string
	InChannel bool
}

// Respond 通过 response_url 回复；超过单条 block 上限时，其余部分作为后续 webhook 消息依次发送
func (c *Client) Respond(ctx context.Context, responseURL string, r Reply) error {
	responseType := slack.ResponseTypeEphemeral
	if r.InChannel {
		responseType = slack.ResponseTypeInChannel
	}
	text := r.Text
	if text == "" && len(r.Blocks) > 0 {
		text = FallbackText(r.Blocks)
	}

	batches := Batches(RenderBlocks(r.Blocks))
	if len(batches) == 0 {
		batches = [][]slack.Block{nil}
	}
	if len(batches) > 1 {
		// response_url 每次最多接受 5 条消息
		c.logger.WithField("batches", len(batches)).Warn("reply exceeds block limit, sending follow-ups")
	}
	for i, batch := range batches {
		msg := &slack.WebhookMessage{Text: text, ResponseType: responseType}
		if len(batch) > 0 {
			msg.Blocks = &slack.Blocks{BlockSet: batch}
		}
		if err := slack.PostWebhookContext(ctx, responseURL, msg); err != nil {
			return fmt.Errorf("respond (%d/%d): %w", i+1, len(batches), err)
		}
	}
	return nil
}

// File 是 Slack 上一个共享文件的元数据
type File struct {
	ID       string
	Name     string
	MimeType string
	URL      string
}

// FileInfo 读取文件元数据
func (c *Client) FileInfo(ctx context.Context, fileID string) (File, error) {
	f, _, _, err := c.api.GetFileInfoContext(ctx, fileID, 0, 0)
	if err != nil {
		return File{}, mapError("files.info", err)
	}
	url := f.URLPrivateDownload
	if url == "" {
		url = f.URLPrivate
	}
	return File{ID: f.ID, Name: f.Name, MimeType: f.Mimetype, URL: url}, nil
}

// DownloadFile 使用 bot token 下载私有文件
func (c *Client) DownloadFile(ctx context.Context, url string) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.api.GetFileContext(ctx, url, &buf); err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	return buf.Bytes(), nil
}
