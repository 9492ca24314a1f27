package notify

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

type discordSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts to a single ops channel.
type Discord struct {
	session   discordSender
	channelID string
}

// NewDiscord prepares a bot session for channelID. No gateway connection is
// opened; messages go over the REST API.
func NewDiscord(token, channelID string) (*Discord, error) {
	if channelID == "" {
		return nil, errors.New("no discord channel configured")
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &Discord{session: dg, channelID: channelID}, nil
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Notify(ctx context.Context, text string) error {
	_, err := d.session.ChannelMessageSend(d.channelID, text, discordgo.WithContext(ctx))
	return err
}
