// Package chat posts backblast summaries to Slack channels.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/f3peakcity/f3-bot/internal/domain/message"
	"github.com/f3peakcity/f3-bot/internal/domain/model"
	"github.com/f3peakcity/f3-bot/pkg/logger"
	"github.com/f3peakcity/f3-bot/pkg/metrics"
)

// Channel name prefixes that change routing.
const (
	firstFPrefix = "ao"
	thirdFPrefix = "3rdf"
)

// ErrNoChannel is returned when a submission has nowhere to go.
var ErrNoChannel = errors.New("no chat channel to post to")

// Client is the subset of the Slack API the poster uses.
type Client interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	JoinConversationContext(ctx context.Context, channelID string) (*slack.Channel, string, []string, error)
}

// Poster routes and posts summaries. Posting is best effort: failures are
// logged and counted, never retried.
type Poster struct {
	client         Client
	defaultChannel string
	firstFChannel  string
	thirdFChannel  string
	blockLimit     int
	log            logger.Logger
}

// Option configures a Poster.
type Option func(*Poster)

// WithDefaultChannel sets the channel used when nothing else applies.
func WithDefaultChannel(id string) Option { return func(p *Poster) { p.defaultChannel = id } }

// WithFirstFChannel sets the channel that receives workout venue posts.
func WithFirstFChannel(id string) Option { return func(p *Poster) { p.firstFChannel = id } }

// WithThirdFChannel sets the channel that also receives 3rd-F posts.
func WithThirdFChannel(id string) Option { return func(p *Poster) { p.thirdFChannel = id } }

// WithBlockLimit overrides the maximum characters per posted block.
func WithBlockLimit(n int) Option {
	return func(p *Poster) {
		if n > 0 {
			p.blockLimit = n
		}
	}
}

// WithLogger sets the poster logger.
func WithLogger(l logger.Logger) Option { return func(p *Poster) { p.log = l } }

// New returns a poster over client.
func New(client Client, opts ...Option) *Poster {
	p := &Poster{
		client:     client,
		blockLimit: message.BlockLimit,
		log:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewSlack returns a poster authenticated with a bot token.
func NewSlack(token string, opts ...Option) *Poster {
	return New(slack.New(token), opts...)
}

// Channels decides where a summary for the venue channel goes:
//   - no venue channel: the 1st-F channel
//   - a channel named ao*: the 1st-F channel instead of the venue
//   - a channel named 3rdf*: the venue and the 3rd-F channel
//   - otherwise the venue channel alone
//
// The bot joins the venue channel when it is not a member yet. When the
// channel cannot be looked up the venue channel is used as is.
func (p *Poster) Channels(ctx context.Context, venueChannelID string) []string {
	fallback := firstNonEmpty(p.firstFChannel, p.defaultChannel)
	if venueChannelID == "" {
		return compact(fallback)
	}

	ch, err := p.client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: venueChannelID})
	if err != nil {
		p.log.Error(ctx, "channel lookup failed", logger.String("channel", venueChannelID), logger.Error(err))
		return compact(venueChannelID)
	}

	out := []string{venueChannelID}
	switch name := strings.ToLower(ch.Name); {
	case strings.HasPrefix(name, firstFPrefix):
		out = []string{fallback}
	case strings.HasPrefix(name, thirdFPrefix):
		out = append(out, p.thirdFChannel)
	}

	if !ch.IsMember {
		if _, _, _, err := p.client.JoinConversationContext(ctx, venueChannelID); err != nil {
			p.log.Warn(ctx, "join channel failed", logger.String("channel", venueChannelID), logger.Error(err))
		}
	}
	return compact(out...)
}

// Post sends the summary of s to every routed channel, one message per
// block. It returns the joined errors of failed posts.
func (p *Poster) Post(ctx context.Context, s model.Submission) error {
	channels := p.Channels(ctx, s.VenueChannelID)
	if len(channels) == 0 {
		metrics.RecordChatPost("skipped")
		return ErrNoChannel
	}

	blocks := message.Split(message.Build(s), p.blockLimit)
	var errs []error
	for _, text := range blocks {
		for _, channel := range channels {
			_, _, err := p.client.PostMessageContext(ctx, channel,
				slack.MsgOptionText(text, false),
				slack.MsgOptionBlocks(slack.NewSectionBlock(
					slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)))
			if err != nil {
				metrics.RecordChatPost("failed")
				p.log.Error(ctx, "post failed",
					logger.String("channel", channel), logger.String("backblast_id", s.ID), logger.Error(err))
				errs = append(errs, fmt.Errorf("post to %s: %w", channel, err))
				continue
			}
			metrics.RecordChatPost("ok")
		}
	}
	p.log.Debug(ctx, "summary posted",
		logger.String("backblast_id", s.ID), logger.Int("channels", len(channels)), logger.Int("blocks", len(blocks)))
	return errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// compact drops empty and repeated channel ids, keeping order.
func compact(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
