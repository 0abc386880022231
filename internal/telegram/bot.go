package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/voxnote/voxnote/internal/app"
	"github.com/voxnote/voxnote/internal/observe"
	"github.com/voxnote/voxnote/internal/pipeline"
	"github.com/voxnote/voxnote/pkg/provider/transcribe"
)

// defaultPollTimeout is the long-poll duration in seconds for getUpdates.
const defaultPollTimeout = 50

// statusText is the placeholder message shown while a submission is being
// transcribed; it is edited into the result or an error afterwards.
const statusText = "Transcribing your audio, this can take a minute..."

// Processor runs one audio submission through the transcription pipeline.
// Satisfied by [app.Service].
type Processor interface {
	Process(ctx context.Context, sub app.Submission) (pipeline.Delivery, error)
}

// BotOption is a functional option for configuring a [Bot].
type BotOption func(*Bot)

// WithPollTimeout sets the getUpdates long-poll duration in seconds.
func WithPollTimeout(seconds int) BotOption {
	return func(b *Bot) { b.pollTimeout = seconds }
}

// Bot receives Telegram messages, pre-checks audio attachments, and hands
// them to the pipeline. One Bot serves all chats; submissions are handled
// concurrently.
type Bot struct {
	client      *Client
	svc         Processor
	pollTimeout int
}

// NewBot creates a Bot around an API client and a pipeline service.
func NewBot(client *Client, svc Processor, opts ...BotOption) *Bot {
	b := &Bot{
		client:      client,
		svc:         svc,
		pollTimeout: defaultPollTimeout,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run long-polls for updates until ctx is cancelled. A webhook registered for
// the bot token is removed first; Telegram rejects getUpdates otherwise.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.client.GetMe(ctx)
	if err != nil {
		return err
	}
	if err := b.client.SetWebhook(ctx, ""); err != nil {
		return err
	}
	slog.Info("telegram bot polling", "username", me.Username)

	var offset int64
	for {
		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("telegram: getUpdates failed, backing off", "error", err)
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil {
				continue
			}
			go b.HandleMessage(ctx, u.Message)
		}
	}
}

// HandleMessage processes one incoming message: commands get a reply, audio
// attachments go through the pipeline, everything else is ignored.
func (b *Bot) HandleMessage(ctx context.Context, msg *Message) {
	ctx, span := observe.StartSpan(ctx, "telegram.handle_message")
	defer span.End()
	log := observe.Logger(ctx)

	if cmd := command(msg.Text); cmd != "" {
		b.handleCommand(ctx, msg.Chat.ID, cmd)
		return
	}

	audio, ok := extractAudio(msg)
	if !ok {
		return
	}

	if !pipeline.AcceptedMIME(audio.MIME) {
		b.reply(ctx, msg.Chat.ID,
			"Unsupported audio type "+audio.MIME+". Supported: "+
				strings.Join(pipeline.AcceptedMIMEList(), ", "))
		return
	}
	if audio.size > pipeline.MaxUploadBytes {
		b.reply(ctx, msg.Chat.ID,
			"File is too large. The limit is "+
				strconv.Itoa(pipeline.MaxUploadBytes/(1024*1024))+" MB.")
		return
	}

	_ = b.client.SendChatAction(ctx, msg.Chat.ID, "typing")
	status, err := b.client.SendMessage(ctx, SendMessageParams{
		ChatID:           msg.Chat.ID,
		Text:             statusText,
		ReplyToMessageID: msg.MessageID,
	})
	if err != nil {
		log.Error("telegram: failed to send status message", "error", err)
		return
	}

	data, err := b.download(ctx, audio.fileID)
	if err != nil {
		log.Error("telegram: audio download failed", "error", err)
		b.editStatus(ctx, status, "Could not download your audio, please try again.")
		return
	}

	userID := ""
	if msg.From != nil {
		userID = strconv.FormatInt(msg.From.ID, 10)
	}
	d, err := b.svc.Process(ctx, app.Submission{
		Audio: pipeline.Audio{
			Data:      data,
			MIME:      audio.MIME,
			Filename:  audio.filename,
			VoiceNote: audio.voiceNote,
		},
		Platform: "telegram",
		ChatID:   strconv.FormatInt(msg.Chat.ID, 10),
		UserID:   userID,
	})
	if err != nil {
		log.Warn("telegram: transcription failed", "error", err)
		b.editStatus(ctx, status, failureText(err))
		return
	}

	b.deliver(ctx, msg.Chat.ID, status, d)
}

// deliver sends the transcript per the pipeline's delivery decision: inline
// text replaces the status message, longer transcripts go out as a document.
func (b *Bot) deliver(ctx context.Context, chatID int64, status *Message, d pipeline.Delivery) {
	log := observe.Logger(ctx)

	if d.Mode == pipeline.ModeInline {
		err := b.client.EditMessageText(ctx, chatID, status.MessageID, d.Text, ParseModeMarkdownV2)
		if err != nil {
			// Transcripts can contain sequences MarkdownV2 rejects even
			// after escaping; plain text always renders.
			log.Warn("telegram: formatted delivery rejected, sending plain", "error", err)
			err = b.client.EditMessageText(ctx, chatID, status.MessageID, unescapeInline(d.Text), "")
		}
		if err != nil {
			log.Error("telegram: inline delivery failed", "error", err)
		}
		return
	}

	_ = b.client.SendChatAction(ctx, chatID, "upload_document")
	if _, err := b.client.SendDocument(ctx, chatID, d.Filename, d.Content,
		"Transcript is too long for a message, attached as a file."); err != nil {
		log.Error("telegram: document delivery failed", "error", err)
		b.editStatus(ctx, status, "Transcription succeeded but the file upload failed, please try again.")
		return
	}
	if err := b.client.DeleteMessage(ctx, chatID, status.MessageID); err != nil {
		log.Warn("telegram: failed to delete status message", "error", err)
	}
}

// download resolves a file_id and fetches its content.
func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	f, err := b.client.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return b.client.DownloadFile(ctx, f.FilePath)
}

// handleCommand answers bot commands.
func (b *Bot) handleCommand(ctx context.Context, chatID int64, cmd string) {
	switch cmd {
	case "start", "help":
		b.reply(ctx, chatID,
			"Send me a voice message or an audio file and I will transcribe it.\n"+
				"Supported formats: "+strings.Join(pipeline.AcceptedMIMEList(), ", ")+".\n"+
				"Long transcripts are delivered as a Markdown file.")
	}
}

// reply sends a plain text message, logging failures.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.client.SendMessage(ctx, SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		observe.Logger(ctx).Error("telegram: reply failed", "error", err)
	}
}

// editStatus rewrites the status message, logging failures.
func (b *Bot) editStatus(ctx context.Context, status *Message, text string) {
	if err := b.client.EditMessageText(ctx, status.Chat.ID, status.MessageID, text, ""); err != nil {
		observe.Logger(ctx).Error("telegram: status edit failed", "error", err)
	}
}

// attachment is the audio metadata extracted from a message.
type attachment struct {
	fileID    string
	filename  string
	MIME      string
	size      int64
	voiceNote bool
}

// extractAudio pulls the audio attachment out of a message, whichever field
// it arrived in. Voice notes carry no MIME type; Telegram records them as
// Opus in an OGG container.
func extractAudio(msg *Message) (attachment, bool) {
	switch {
	case msg.Voice != nil:
		mime := msg.Voice.MimeType
		if mime == "" {
			mime = "audio/ogg"
		}
		return attachment{
			fileID:    msg.Voice.FileID,
			MIME:      mime,
			size:      msg.Voice.FileSize,
			voiceNote: true,
		}, true
	case msg.Audio != nil:
		return attachment{
			fileID:   msg.Audio.FileID,
			filename: msg.Audio.FileName,
			MIME:     msg.Audio.MimeType,
			size:     msg.Audio.FileSize,
		}, true
	case msg.Document != nil:
		return attachment{
			fileID:   msg.Document.FileID,
			filename: msg.Document.FileName,
			MIME:     msg.Document.MimeType,
			size:     msg.Document.FileSize,
		}, true
	}
	return attachment{}, false
}

// command extracts the command name from a "/name" or "/name@bot" message.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text[1:])
	if len(cmd) == 0 {
		return ""
	}
	name, _, _ := strings.Cut(cmd[0], "@")
	return name
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

// unescapeInline reverses [pipeline.EscapeInline] for the plain-text
// delivery fallback.
var unescapeInline = func() func(string) string {
	r := strings.NewReplacer(
		`\.`, ".",
		`\-`, "-",
		`\!`, "!",
		`\(`, "(",
		`\)`, ")",
	)
	return r.Replace
}()
