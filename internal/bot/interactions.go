package bot

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/riverfjs/slackify-go"
	"github.com/riverfjs/slackify-go/internal/llm"
	"github.com/riverfjs/slackify-go/internal/slackapi"
)

const (
	modalErrorFormat   = "Sorry, I encountered an error while opening the %s form. Please try again."
	submitErrorFormat  = "Sorry, I encountered an error while preparing the %s: %s"
	deliverErrorFormat = "Sorry, I couldn't deliver the %s. Please try again."
)

func (b *Bot) handleInteraction(ctx context.Context, log logrus.FieldLogger, cb slack.InteractionCallback) {
	log = log.WithFields(logrus.Fields{
		"interaction": string(cb.Type),
		"user":        cb.User.ID,
	})

	switch cb.Type {
	case slack.InteractionTypeShortcut, slack.InteractionTypeMessageAction:
		b.openShortcut(ctx, log, cb)
	case slack.InteractionTypeViewSubmission:
		if cb.View.CallbackID == analyzeCallbackID {
			b.submitAnalyze(ctx, log, cb)
			return
		}
		b.submitModal(ctx, log, cb)
	default:
		log.Debug("ignored interaction")
	}
}

func (b *Bot) openShortcut(ctx context.Context, log logrus.FieldLogger, cb slack.InteractionCallback) {
	log = log.WithField("callback_id", cb.CallbackID)

	id, ok := shortcuts[cb.CallbackID]
	if !ok {
		log.Warn("unknown shortcut")
		return
	}
	m := modals[id]

	meta := modalMetadata{User: cb.User.ID}
	initial := ""
	if cb.Type == slack.InteractionTypeMessageAction {
		meta.Channel = cb.Channel.ID
		meta.ThreadTS = threadOf(cb.Message.ThreadTimestamp, cb.Message.Timestamp)
		if m.prefill != nil {
			initial = m.prefill(cb.Message.Text)
		}
	}

	if err := b.chat.OpenModal(ctx, cb.TriggerID, m.view(initial, meta)); err != nil {
		log.WithError(err).WithField("slack_error", slackapi.ErrorCode(err)).Error("failed to open modal")
		if nerr := b.router.Notify(ctx, cb.User.ID, fmt.Sprintf(modalErrorFormat, m.task.Subject())); nerr != nil {
			log.WithError(nerr).Warn("modal error not sent")
		}
		return
	}
	log.Debug("modal opened")
}

func (b *Bot) submitModal(ctx context.Context, log logrus.FieldLogger, cb slack.InteractionCallback) {
	m, ok := modals[cb.View.CallbackID]
	if !ok {
		log.WithField("callback_id", cb.View.CallbackID).Warn("unknown modal")
		return
	}
	log = log.WithField("callback_id", m.callbackID)

	user := cb.User.ID
	meta, err := decodeMetadata(cb.View.PrivateMetadata)
	if err != nil {
		// 元数据损坏时回到私信
		log.WithError(err).Warn("bad modal metadata, replying by DM")
		meta = modalMetadata{}
	}
	if meta.User == "" {
		meta.User = user
	}

	input := m.value(cb.View.State)
	reply, err := llm.Run(ctx, b.llm, m.task, input)
	if err != nil {
		log.WithError(err).Error("modal task failed")
		if nerr := b.router.Notify(ctx, meta.User, fmt.Sprintf(submitErrorFormat, m.task.Subject(), err.Error())); nerr != nil {
			log.WithError(nerr).Warn("modal error not sent")
		}
		return
	}

	dc := slackify.NewDeliveryContext(meta.Channel, meta.User, meta.ThreadTS).WithSubject(m.task.Subject())
	outcome, err := b.router.Deliver(ctx, b.format(reply), dc)
	log = log.WithFields(logrus.Fields{"outcome": outcome.String(), "destination": dc.DestinationID})
	if err != nil {
		log.WithError(err).Error("modal result not delivered")
		if nerr := b.router.Notify(ctx, meta.User, fmt.Sprintf(deliverErrorFormat, m.task.Subject())); nerr != nil {
			log.WithError(nerr).Warn("modal error not sent")
		}
		return
	}
	log.Info("modal result delivered")
}
