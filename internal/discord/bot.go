// Package discord implements the Discord transport via the bwmarrin/discordgo
// library. The bot listens for audio attachments in guild channels and DMs,
// runs them through the transcription pipeline, and replies with the
// transcript inline or as a Markdown file.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/voxnote/voxnote/internal/app"
	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/internal/pipeline"
	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

// messageLimit is Discord's message length ceiling. Inline transcripts over
// it are downgraded to a file attachment even when the pipeline chose inline
// delivery.
const messageLimit = 2000

// voiceMessageFilename is the fixed name Discord gives in-app voice
// recordings.
const voiceMessageFilename = "voice-message.ogg"

// messenger is the slice of the discordgo session the bot sends through.
// *discordgo.Session satisfies it; tests substitute a recorder.
type messenger interface {
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Processor runs one audio submission through the transcription pipeline.
// Satisfied by [app.Service].
type Processor interface {
	Process(ctx context.Context, sub app.Submission) (pipeline.Delivery, error)
}

// BotOption is a functional option for configuring a [Bot].
type BotOption func(*Bot)

// WithDownloadClient overrides the HTTP client used to fetch attachment
// content from Discord's CDN.
func WithDownloadClient(hc *http.Client) BotOption {
	return func(b *Bot) { b.download = hc }
}

// Bot is the Discord transport. One Bot serves all guilds the token is
// invited to; submissions are handled concurrently by discordgo's event
// dispatch.
type Bot struct {
	session  *discordgo.Session
	send     messenger
	svc      Processor
	download *http.Client
}

// New creates a Bot for the given bot token. The session is configured but
// not opened; call [Bot.Run].
func New(token string, svc Processor, opts ...BotOption) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		session:  session,
		send:     session,
		svc:      svc,
		download: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(b)
	}
	session.AddHandler(b.onMessageCreate)
	return b, nil
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	slog.Info("discord bot connected", "user", b.session.State.User.Username)
	<-ctx.Done()
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("discord: close gateway: %w", err)
	}
	return ctx.Err()
}

// onMessageCreate is the gateway handler for new messages.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	b.HandleMessage(context.Background(), m.Message)
}

// HandleMessage processes the audio attachments of one message.
func (b *Bot) HandleMessage(ctx context.Context, m *discordgo.Message) {
	for _, att := range m.Attachments {
		if att == nil || !pipeline.AcceptedMIME(att.ContentType) {
			continue
		}
		b.handleAttachment(ctx, m, att)
	}
}

// handleAttachment transcribes a single audio attachment and replies in the
// message's channel.
func (b *Bot) handleAttachment(ctx context.Context, m *discordgo.Message, att *discordgo.MessageAttachment) {
	ctx, span := observe.StartSpan(ctx, "discord.handle_attachment")
	defer span.End()
	log := observe.Logger(ctx)

	if att.Size > pipeline.MaxUploadBytes {
		b.reply(ctx, m, fmt.Sprintf("That file is too large, the limit is %d MB.",
			pipeline.MaxUploadBytes/(1024*1024)))
		return
	}

	_ = b.send.ChannelTyping(m.ChannelID)

	data, err := b.fetch(ctx, att.URL)
	if err != nil {
		log.Error("discord: attachment download failed", "error", err, "url", att.URL)
		b.reply(ctx, m, "Could not download your audio, please try again.")
		return
	}

	userID := ""
	if m.Author != nil {
		userID = m.Author.ID
	}
	voiceNote := att.Filename == voiceMessageFilename
	d, err := b.svc.Process(ctx, app.Submission{
		Audio: pipeline.Audio{
			Data:      data,
			MIME:      att.ContentType,
			Filename:  att.Filename,
			VoiceNote: voiceNote,
		},
		Platform: "discord",
		ChatID:   m.ChannelID,
		UserID:   userID,
	})
	if err != nil {
		log.Warn("discord: transcription failed", "error", err)
		b.reply(ctx, m, failureText(err))
		return
	}

	b.deliver(ctx, m, d)
}

// deliver replies with the transcript. Inline transcripts within Discord's
// message ceiling go as text; everything else is attached as a file.
func (b *Bot) deliver(ctx context.Context, m *discordgo.Message, d pipeline.Delivery) {
	log := observe.Logger(ctx)

	if d.Mode == pipeline.ModeInline {
		// The pipeline escapes for the primary platform's formatting;
		// Discord renders the raw text.
		text := unescapeInline(d.Text)
		if len(text) <= messageLimit {
			b.reply(ctx, m, text)
			return
		}
		d = pipeline.Delivery{
			Mode:     pipeline.ModeFile,
			Filename: "voice_message_" + time.Now().Format("20060102_150405") + ".md",
			Content:  []byte(text),
		}
	}

	_, err := b.send.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:   "Transcript is too long for a message, attached as a file.",
		Reference: m.Reference(),
		Files: []*discordgo.File{{
			Name:        d.Filename,
			ContentType: "text/markdown",
			Reader:      bytes.NewReader(d.Content),
		}},
	})
	if err != nil {
		log.Error("discord: file delivery failed", "error", err)
	}
}

// reply sends a text reply to m, logging failures.
func (b *Bot) reply(ctx context.Context, m *discordgo.Message, text string) {
	_, err := b.send.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:   text,
		Reference: m.Reference(),
	})
	if err != nil {
		observe.Logger(ctx).Error("discord: reply failed", "error", err)
	}
}

// fetch downloads attachment content, enforcing the transport size ceiling.
func (b *Bot) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := b.download.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, pipeline.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > pipeline.MaxUploadBytes {
		return nil, fmt.Errorf("attachment exceeds %d byte limit", pipeline.MaxUploadBytes)
	}
	return data, nil
}

// failureText maps a pipeline failure to a user-facing explanation.
func failureText(err error) string {
	kind, ok := transcribe.AsKind(err)
	if !ok {
		return "Transcription failed, please try again later."
	}
	switch kind {
	case transcribe.KindBlocked:
		return "The transcription service declined to process this audio."
	case transcribe.KindEmpty:
		return "The transcription came back empty. Is there audible speech in the recording?"
	case transcribe.KindRateLimited:
		return "The transcription service is overloaded right now, please try again in a few minutes."
	default:
		return "Transcription failed, please try again later."
	}
}

// unescapeInline strips the primary platform's formatting escapes.
var unescapeInline = strings.NewReplacer(
	`\.`, ".",
	`\-`, "-",
	`\!`, "!",
	`\(`, "(",
	`\)`, ")",
).Replace
