// Package telegram implements the Telegram transport: a minimal Bot API
// client covering the handful of methods the bot needs, a long-polling update
// loop, and a webhook handler for the admin HTTP server. The official Bot API
// surface used here is small and stable enough that a raw HTTP client keeps
// the dependency honest.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/voxnote/voxnote/internal/pipeline"
)

// defaultBaseURL is the production Bot API endpoint.
const defaultBaseURL = "https://api.telegram.org"

// ParseModeMarkdownV2 requests MarkdownV2 rendering for outgoing messages.
// Text sent with it must be escaped with [pipeline.EscapeInline].
const ParseModeMarkdownV2 = "MarkdownV2"

// User is a Telegram user or bot account.
type User struct {
	ID       int64  `json:"id"`
	IsBot    bool   `json:"is_bot"`
	Username string `json:"username"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Voice is an in-app voice note attachment.
type Voice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// Audio is a music/audio file attachment with its own metadata.
type Audio struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// Document is a generic file attachment; audio files sent "as file" arrive
// this way.
type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// Message is an incoming or outgoing chat message.
type Message struct {
	MessageID int64     `json:"message_id"`
	From      *User     `json:"from"`
	Chat      Chat      `json:"chat"`
	Text      string    `json:"text"`
	Voice     *Voice    `json:"voice"`
	Audio     *Audio    `json:"audio"`
	Document  *Document `json:"document"`
}

// Update is one long-polling or webhook event.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// File is the download handle returned by getFile.
type File struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// APIError is a Bot API call that completed with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s: api error %d: %s", e.Method, e.Code, e.Description)
}

// ClientOption is a functional option for configuring a [Client].
type ClientOption func(*Client)

// WithBaseURL overrides the Bot API endpoint. Used by tests to point the
// client at a local server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// Client is a minimal Telegram Bot API client. Safe for concurrent use.
type Client struct {
	token       string
	baseURL     string
	http        *http.Client
	maxDownload int64
}

// NewClient creates a Bot API client for the given bot token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:       token,
		baseURL:     defaultBaseURL,
		http:        &http.Client{Timeout: 90 * time.Second},
		maxDownload: pipeline.MaxUploadBytes,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// call performs one form-encoded Bot API method call and decodes the result
// into out (which may be nil when the result is not needed).
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	endpoint := c.baseURL + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		bytes.NewBufferString(params.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: %s: create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	return decodeAPIResponse(method, resp.Body, out)
}

// decodeAPIResponse unwraps the Bot API envelope.
func decodeAPIResponse(method string, body io.Reader, out any) error {
	var env apiResponse
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return fmt.Errorf("telegram: %s: decode response: %w", method, err)
	}
	if !env.OK {
		return &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("telegram: %s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetMe returns the bot's own account, confirming the token works.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, "getMe", url.Values{}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUpdates long-polls for new updates after offset, blocking for up to
// timeout seconds server-side.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	params := url.Values{
		"offset":          {strconv.FormatInt(offset, 10)},
		"timeout":         {strconv.Itoa(timeout)},
		"allowed_updates": {`["message"]`},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// GetFile resolves a file_id into a download path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var f File
	if err := c.call(ctx, "getFile", url.Values{"file_id": {fileID}}, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// DownloadFile fetches the file content behind a getFile path. Downloads
// larger than the transport ceiling are aborted.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	endpoint := c.baseURL + "/file/bot" + c.token + "/" + filePath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: download: create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram: download: http %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("telegram: download: read body: %w", err)
	}
	if int64(len(data)) > c.maxDownload {
		return nil, fmt.Errorf("telegram: download: file exceeds %d byte limit", c.maxDownload)
	}
	return data, nil
}

// SendMessageParams are the fields the bot uses on sendMessage.
type SendMessageParams struct {
	ChatID           int64
	Text             string
	ParseMode        string
	ReplyToMessageID int64
}

// SendMessage sends a text message and returns the sent message.
func (c *Client) SendMessage(ctx context.Context, p SendMessageParams) (*Message, error) {
	params := url.Values{
		"chat_id": {strconv.FormatInt(p.ChatID, 10)},
		"text":    {p.Text},
	}
	if p.ParseMode != "" {
		params.Set("parse_mode", p.ParseMode)
	}
	if p.ReplyToMessageID != 0 {
		params.Set("reply_to_message_id", strconv.FormatInt(p.ReplyToMessageID, 10))
	}
	var m Message
	if err := c.call(ctx, "sendMessage", params, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EditMessageText replaces the text of a previously sent message.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text, parseMode string) error {
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"message_id": {strconv.FormatInt(messageID, 10)},
		"text":       {text},
	}
	if parseMode != "" {
		params.Set("parse_mode", parseMode)
	}
	return c.call(ctx, "editMessageText", params, nil)
}

// DeleteMessage removes a previously sent message.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"message_id": {strconv.FormatInt(messageID, 10)},
	}
	return c.call(ctx, "deleteMessage", params, nil)
}

// SendChatAction shows an activity indicator ("typing", "upload_document") in
// the chat.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"action":  {action},
	}
	return c.call(ctx, "sendChatAction", params, nil)
}

// SendDocument uploads content as a document attachment via multipart POST.
func (c *Client) SendDocument(ctx context.Context, chatID int64, filename string, content []byte, caption string) (*Message, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return nil, fmt.Errorf("telegram: sendDocument: write field: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return nil, fmt.Errorf("telegram: sendDocument: write field: %w", err)
		}
	}
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return nil, fmt.Errorf("telegram: sendDocument: create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("telegram: sendDocument: write content: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("telegram: sendDocument: close multipart: %w", err)
	}

	endpoint := c.baseURL + "/bot" + c.token + "/sendDocument"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("telegram: sendDocument: create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: sendDocument: %w", err)
	}
	defer resp.Body.Close()

	var m Message
	if err := decodeAPIResponse("sendDocument", resp.Body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SetWebhook registers the webhook URL updates should be delivered to.
// Pass an empty URL to remove the webhook (required before long polling).
func (c *Client) SetWebhook(ctx context.Context, webhookURL string) error {
	return c.call(ctx, "setWebhook", url.Values{"url": {webhookURL}}, nil)
}
