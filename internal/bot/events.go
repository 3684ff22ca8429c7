package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack/slackevents"

	"github.com/riverfjs/slackify-go/internal/llm"
)

const (
	reactionWorking = "eyes"
	reactionDone    = "white_check_mark"

	greetingText = "👋 Hello! I've joined the channel and am ready to help. " +
		"Mention me with a question, or use the message shortcuts to explain, simplify, improve or summarize text."
	emptyMentionText = "Hello! How can I assist you today?"
	apologyFormat    = "Sorry, I encountered an error: %s"
	dmApologyFormat  = "I encountered an error: %s"
)

// mentionPattern 匹配 <@U123> 或 <@U123|name>
var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+(?:\|[^>]*)?>`)

func (b *Bot) handleEventsAPI(ctx context.Context, log logrus.FieldLogger, evt slackevents.EventsAPIEvent) {
	if evt.Type != slackevents.CallbackEvent {
		log.WithField("type", evt.Type).Debug("ignored events api envelope")
		return
	}

	switch ev := evt.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if ev.BotID != "" || ev.User == b.botUserID {
			return
		}
		b.handleConversation(ctx, log, conversation{
			channelID: ev.Channel,
			userID:    ev.User,
			timestamp: ev.TimeStamp,
			threadID:  threadOf(ev.ThreadTimeStamp, ev.TimeStamp),
			text:      stripMentions(ev.Text),
			inChannel: true,
		})

	case *slackevents.MessageEvent:
		if ev.SubType == "channel_join" {
			if ev.User == b.botUserID {
				log.WithField("channel", ev.Channel).Info("joined channel")
			}
			return
		}
		// 频道中的消息由 app_mention 处理
		if ev.ChannelType != "im" || ev.SubType != "" || ev.BotID != "" || ev.User == "" || ev.User == b.botUserID {
			return
		}
		b.handleConversation(ctx, log, conversation{
			channelID: ev.Channel,
			userID:    ev.User,
			timestamp: ev.TimeStamp,
			threadID:  threadOf(ev.ThreadTimeStamp, ev.TimeStamp),
			text:      strings.TrimSpace(ev.Text),
		})

	case *slackevents.MemberJoinedChannelEvent:
		if ev.User != b.botUserID {
			return
		}
		b.greet(ctx, log, ev.Channel)

	default:
		log.WithField("inner_type", evt.InnerEvent.Type).Debug("ignored inner event")
	}
}

type conversation struct {
	channelID string
	userID    string
	timestamp string
	threadID  string
	text      string
	inChannel bool
}

func (b *Bot) handleConversation(ctx context.Context, log logrus.FieldLogger, c conversation) {
	log = log.WithFields(logrus.Fields{"channel": c.channelID, "user": c.userID})

	if c.inChannel && !b.router.EnsureAccess(ctx, c.channelID, c.userID) {
		log.Warn("no access to channel, mention dropped")
		return
	}

	if c.text == "" {
		if err := b.chat.PostThreadText(ctx, c.channelID, c.threadID, emptyMentionText); err != nil {
			log.WithError(err).Warn("failed to post greeting")
		}
		return
	}

	b.react(ctx, log, c.channelID, c.timestamp, reactionWorking, true)

	reply, err := llm.Run(ctx, b.llm, llm.TaskAsk, c.text)
	if err == nil {
		err = b.chat.PostBlocks(ctx, c.channelID, b.format(reply), c.threadID)
	}
	if err != nil {
		log.WithError(err).Error("failed to answer message")
		b.apologize(ctx, log, c, err)
		return
	}

	b.react(ctx, log, c.channelID, c.timestamp, reactionWorking, false)
	b.react(ctx, log, c.channelID, c.timestamp, reactionDone, true)
	log.Info("answered message")
}

// apologize 在原线程回复错误，失败时改为私信
func (b *Bot) apologize(ctx context.Context, log logrus.FieldLogger, c conversation, cause error) {
	text := fmt.Sprintf(apologyFormat, cause.Error())
	err := b.chat.PostThreadText(ctx, c.channelID, c.threadID, text)
	if err == nil {
		return
	}
	log.WithError(err).Warn("apology not posted in thread")
	if err := b.router.Notify(ctx, c.userID, fmt.Sprintf(dmApologyFormat, cause.Error())); err != nil {
		log.WithError(err).Warn("apology not sent by DM")
	}
}

func (b *Bot) greet(ctx context.Context, log logrus.FieldLogger, channelID string) {
	if err := b.chat.PostText(ctx, channelID, greetingText); err != nil {
		log.WithError(err).WithField("channel", channelID).Warn("failed to post greeting")
		return
	}
	log.WithField("channel", channelID).Info("greeted channel")
}

// react 表情只是状态提示，失败仅记录
func (b *Bot) react(ctx context.Context, log logrus.FieldLogger, channelID, timestamp, name string, add bool) {
	if timestamp == "" {
		return
	}
	var err error
	if add {
		err = b.chat.AddReaction(ctx, channelID, timestamp, name)
	} else {
		err = b.chat.RemoveReaction(ctx, channelID, timestamp, name)
	}
	if err != nil {
		log.WithError(err).WithField("reaction", name).Debug("reaction not updated")
	}
}

func stripMentions(text string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
}

func threadOf(threadTS, ts string) string {
	if threadTS != "" {
		return threadTS
	}
	return ts
}
