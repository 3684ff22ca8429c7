package slackify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	joinFailedText   = "I couldn't join the channel. Please make sure I've been invited."
	accessFailedText = "I couldn't access the channel. Please check my permissions."
	pointerFormat    = "I've posted the %s in the channel."
	defaultSubject   = "response"
)

// DestinationKind is the closed classification of a destination ID.
type DestinationKind int

const (
	// DestinationDM covers direct-message IDs, a missing ID and the user's own ID.
	DestinationDM DestinationKind = iota
	// DestinationChannel covers public channel IDs.
	DestinationChannel
	// DestinationUnknown covers every other shape. It is routed like a DM.
	DestinationUnknown
)

// String returns the string representation of DestinationKind.
func (k DestinationKind) String() string {
	switch k {
	case DestinationDM:
		return "dm"
	case DestinationChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// ClassifyDestination maps a conversation ID to its destination kind.
//
//   - "" or the fallback user's own ID → DM
//   - "D…" (direct conversation) → DM
//   - "C…" (channel) → Channel
//   - anything else → Unknown
func ClassifyDestination(destinationID, fallbackUserID string) DestinationKind {
	switch {
	case destinationID == "" || destinationID == fallbackUserID:
		return DestinationDM
	case strings.HasPrefix(destinationID, "D"):
		return DestinationDM
	case strings.HasPrefix(destinationID, "C"):
		return DestinationChannel
	default:
		return DestinationUnknown
	}
}

// DeliveryContext is the destination and threading metadata of one
// outgoing message.
type DeliveryContext struct {
	DestinationID  string
	FallbackUserID string
	ThreadID       string // "" when not replying in a thread
	Kind           DestinationKind

	// Subject names the content in the pointer message, e.g. "summary".
	Subject string
}

// NewDeliveryContext normalizes optional fields once at the boundary: a
// missing destination becomes the fallback user, and the kind is derived
// from the destination ID.
func NewDeliveryContext(destinationID, fallbackUserID, threadID string) DeliveryContext {
	destinationID = strings.TrimSpace(destinationID)
	fallbackUserID = strings.TrimSpace(fallbackUserID)
	if destinationID == "" {
		destinationID = fallbackUserID
	}
	return DeliveryContext{
		DestinationID:  destinationID,
		FallbackUserID: fallbackUserID,
		ThreadID:       strings.TrimSpace(threadID),
		Kind:           ClassifyDestination(destinationID, fallbackUserID),
		Subject:        defaultSubject,
	}
}

// WithSubject returns a copy of dc whose pointer message names subject.
func (dc DeliveryContext) WithSubject(subject string) DeliveryContext {
	if subject != "" {
		dc.Subject = subject
	}
	return dc
}

// Outcome is the result of Router.Deliver.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeDeliveredViaFallback
	OutcomeFailed
)

// String returns the string representation of Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeDeliveredViaFallback:
		return "delivered_via_fallback"
	default:
		return "failed"
	}
}

// ChannelInfo is the subset of channel metadata the router needs.
type ChannelInfo struct {
	ID       string
	Name     string
	IsMember bool
}

// Platform is the chat-platform client consumed by the router. Each method
// is one network call. Implementations wrap ErrNotInChannel when the
// platform reports that the bot is not a member of the channel.
type Platform interface {
	OpenDM(ctx context.Context, userID string) (string, error)
	PostBlocks(ctx context.Context, channelID string, blocks []Block, threadID string) error
	ChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error)
	JoinChannel(ctx context.Context, channelID string) error
	PostText(ctx context.Context, channelID, text string) error
}

// CallStatus classifies the outcome of one platform call.
type CallStatus int

const (
	CallOK CallStatus = iota
	CallAccessDenied
	CallFailed
)

// CallResult is a platform call outcome the router can switch on.
type CallResult struct {
	Status CallStatus
	Err    error
}

// Classify turns a platform call error into a CallResult.
func Classify(err error) CallResult {
	switch {
	case err == nil:
		return CallResult{Status: CallOK}
	case errors.Is(err, ErrNotInChannel):
		return CallResult{Status: CallAccessDenied, Err: err}
	default:
		return CallResult{Status: CallFailed, Err: err}
	}
}

// Router delivers assembled blocks to a DM or a channel.
type Router struct {
	platform Platform
	logger   logrus.FieldLogger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the logger used by the router.
func WithRouterLogger(logger logrus.FieldLogger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates a Router sending through platform.
func NewRouter(platform Platform, opts ...RouterOption) *Router {
	r := &Router{
		platform: platform,
		logger:   Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deliver sends blocks to the destination described by dc.
//
// DM and unknown destinations go to the fallback user's DM. Channel
// destinations are posted to the channel (joining it when the bot is not a
// member) followed by a best-effort pointer DM; any channel failure falls
// back to the DM path with the same blocks. The returned error is non-nil
// only when the outcome is OutcomeFailed.
func (r *Router) Deliver(ctx context.Context, blocks []Block, dc DeliveryContext) (Outcome, error) {
	log := r.logger.WithFields(logrus.Fields{
		"destination": dc.DestinationID,
		"user":        dc.FallbackUserID,
		"kind":        dc.Kind.String(),
		"blocks":      len(blocks),
	})

	if dc.Kind != DestinationChannel {
		if err := r.sendDM(ctx, blocks, dc); err != nil {
			log.WithError(err).Error("DM delivery failed")
			return OutcomeFailed, deliveryFailure("direct message delivery failed", err)
		}
		log.Debug("delivered to DM")
		return OutcomeDelivered, nil
	}

	channelErr := r.sendChannel(ctx, blocks, dc)
	if channelErr == nil {
		r.postPointer(ctx, dc, log)
		log.Debug("delivered to channel")
		return OutcomeDelivered, nil
	}

	log.WithError(channelErr).Warn("channel delivery failed, falling back to DM")
	if err := r.sendDM(ctx, blocks, dc); err != nil {
		log.WithError(err).Error("DM fallback failed")
		return OutcomeFailed, deliveryFailure("channel and DM delivery failed", errors.Join(channelErr, err))
	}
	return OutcomeDeliveredViaFallback, nil
}

// EnsureAccess makes sure the bot can post in channelID, joining it when
// needed. On failure the user is told why by DM and false is returned.
func (r *Router) EnsureAccess(ctx context.Context, channelID, userID string) bool {
	log := r.logger.WithFields(logrus.Fields{"channel": channelID, "user": userID})

	res := Classify(r.checkMembership(ctx, channelID))
	switch res.Status {
	case CallOK:
		return true
	case CallAccessDenied:
		return r.joinChannel(ctx, channelID, userID) == nil
	default:
		log.WithError(res.Err).Error("channel access check failed")
		r.notifyBestEffort(ctx, userID, accessFailedText)
		return false
	}
}

// Notify sends a plain-text DM to userID.
func (r *Router) Notify(ctx context.Context, userID, text string) error {
	if userID == "" {
		return ErrNoRecipient
	}
	dm, err := r.platform.OpenDM(ctx, userID)
	if err != nil {
		return fmt.Errorf("open DM with %s: %w", userID, err)
	}
	if err := r.platform.PostText(ctx, dm, text); err != nil {
		return fmt.Errorf("post DM to %s: %w", userID, err)
	}
	return nil
}

func (r *Router) sendDM(ctx context.Context, blocks []Block, dc DeliveryContext) error {
	target := ""
	switch {
	case dc.FallbackUserID != "":
		dm, err := r.platform.OpenDM(ctx, dc.FallbackUserID)
		if err != nil {
			return fmt.Errorf("open DM with %s: %w", dc.FallbackUserID, err)
		}
		target = dm
	case strings.HasPrefix(dc.DestinationID, "D"):
		target = dc.DestinationID
	default:
		return ErrNoRecipient
	}

	if err := r.platform.PostBlocks(ctx, target, blocks, dc.ThreadID); err != nil {
		return fmt.Errorf("post blocks to %s: %w", target, err)
	}
	return nil
}

func (r *Router) sendChannel(ctx context.Context, blocks []Block, dc DeliveryContext) error {
	channel := dc.DestinationID

	res := r.withAccess(ctx, channel, dc.FallbackUserID, func() error {
		return r.checkMembership(ctx, channel)
	})
	if res.Status != CallOK {
		return fmt.Errorf("read channel %s: %w", channel, res.Err)
	}

	res = r.withAccess(ctx, channel, dc.FallbackUserID, func() error {
		return r.platform.PostBlocks(ctx, channel, blocks, dc.ThreadID)
	})
	if res.Status != CallOK {
		return fmt.Errorf("post blocks to %s: %w", channel, res.Err)
	}
	return nil
}

// withAccess runs call, and when it is denied for lack of membership joins
// the channel and runs it exactly once more.
func (r *Router) withAccess(ctx context.Context, channelID, userID string, call func() error) CallResult {
	res := Classify(call())
	if res.Status != CallAccessDenied {
		return res
	}
	if err := r.joinChannel(ctx, channelID, userID); err != nil {
		return CallResult{Status: CallFailed, Err: err}
	}
	return Classify(call())
}

// checkMembership reads channel metadata and reports a non-member bot as
// an access error.
func (r *Router) checkMembership(ctx context.Context, channelID string) error {
	info, err := r.platform.ChannelInfo(ctx, channelID)
	if err != nil {
		return err
	}
	if !info.IsMember {
		return fmt.Errorf("channel %s: %w", channelID, ErrNotInChannel)
	}
	return nil
}

func (r *Router) joinChannel(ctx context.Context, channelID, userID string) error {
	log := r.logger.WithFields(logrus.Fields{"channel": channelID, "user": userID})
	if err := r.platform.JoinChannel(ctx, channelID); err != nil {
		log.WithError(err).Error("failed to join channel")
		r.notifyBestEffort(ctx, userID, joinFailedText)
		return accessFailure("could not join channel "+channelID, err)
	}
	log.Info("joined channel")
	return nil
}

func (r *Router) postPointer(ctx context.Context, dc DeliveryContext, log logrus.FieldLogger) {
	subject := dc.Subject
	if subject == "" {
		subject = defaultSubject
	}
	if err := r.Notify(ctx, dc.FallbackUserID, fmt.Sprintf(pointerFormat, subject)); err != nil {
		log.WithError(err).Warn("pointer message not sent")
	}
}

func (r *Router) notifyBestEffort(ctx context.Context, userID, text string) {
	if err := r.Notify(ctx, userID, text); err != nil {
		r.logger.WithError(err).WithField("user", userID).Warn("notification not sent")
	}
}
