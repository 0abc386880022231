package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testToken = "test-token"

func TestSendMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot"+testToken+"/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("chat_id"); got != "7" {
			t.Errorf("chat_id = %q, want 7", got)
		}
		if got := r.FormValue("text"); got != "hello" {
			t.Errorf("text = %q", got)
		}
		if got := r.FormValue("parse_mode"); got != ParseModeMarkdownV2 {
			t.Errorf("parse_mode = %q", got)
		}
		if got := r.FormValue("reply_to_message_id"); got != "3" {
			t.Errorf("reply_to_message_id = %q", got)
		}
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":42,"chat":{"id":7}}}`)
	}))
	defer ts.Close()

	c := NewClient(testToken, WithBaseURL(ts.URL))
	m, err := c.SendMessage(context.Background(), SendMessageParams{
		ChatID:           7,
		Text:             "hello",
		ParseMode:        ParseModeMarkdownV2,
		ReplyToMessageID: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.MessageID != 42 {
		t.Errorf("message_id = %d, want 42", m.MessageID)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error_code":429,"description":"Too Many Requests"}`)
	}))
	defer ts.Close()

	c := NewClient(testToken, WithBaseURL(ts.URL))
	_, err := c.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != 429 || apiErr.Description != "Too Many Requests" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if apiErr.Method != "sendMessage" {
		t.Errorf("method = %q", apiErr.Method)
	}
}

func TestGetFileAndDownload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bot" + testToken + "/getFile":
			_ = r.ParseForm()
			if got := r.FormValue("file_id"); got != "abc123" {
				t.Errorf("file_id = %q", got)
			}
			fmt.Fprint(w, `{"ok":true,"result":{"file_id":"abc123","file_size":5,"file_path":"voice/file_1.oga"}}`)
		case "/file/bot" + testToken + "/voice/file_1.oga":
			fmt.Fprint(w, "audio")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := NewClient(testToken, WithBaseURL(ts.URL))
	f, err := c.GetFile(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	data, err := c.DownloadFile(context.Background(), f.FilePath)
	if err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if string(data) != "audio" {
		t.Errorf("data = %q", data)
	}
}

func TestDownloadFile_EnforcesSizeCeiling(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 32))
	}))
	defer ts.Close()

	c := NewClient(testToken, WithBaseURL(ts.URL))
	c.maxDownload = 16

	_, err := c.DownloadFile(context.Background(), "big/file.mp3")
	if err == nil {
		t.Fatal("expected error for oversized download")
	}
	if !strings.Contains(err.Error(), "limit") {
		t.Errorf("err = %v, want size-limit error", err)
	}
}

func TestSendDocument(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("chat_id"); got != "9" {
			t.Errorf("chat_id = %q", got)
		}
		if got := r.FormValue("caption"); got != "here you go" {
			t.Errorf("caption = %q", got)
		}
		file, header, err := r.FormFile("document")
		if err != nil {
			t.Fatalf("document field: %v", err)
		}
		defer file.Close()
		if header.Filename != "notes.md" {
			t.Errorf("filename = %q", header.Filename)
		}
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":5}}`)
	}))
	defer ts.Close()

	c := NewClient(testToken, WithBaseURL(ts.URL))
	m, err := c.SendDocument(context.Background(), 9, "notes.md", []byte("# Transcription"), "here you go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.MessageID != 5 {
		t.Errorf("message_id = %d", m.MessageID)
	}
}

func TestGetUpdates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if got := r.FormValue("offset"); got != "100" {
			t.Errorf("offset = %q", got)
		}
		if got := r.FormValue("timeout"); got != "50" {
			t.Errorf("timeout = %q", got)
		}
		fmt.Fprint(w, `{"ok":true,"result":[
			{"update_id":100,"message":{"message_id":1,"chat":{"id":2},"text":"hi"}},
			{"update_id":101,"message":{"message_id":2,"chat":{"id":2},"voice":{"file_id":"v1","mime_type":"audio/ogg"}}}
		]}`)
	}))
	defer ts.Close()

	c := NewClient(testToken, WithBaseURL(ts.URL))
	updates, err := c.GetUpdates(context.Background(), 100, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(updates))
	}
	if updates[1].Message.Voice == nil || updates[1].Message.Voice.FileID != "v1" {
		t.Errorf("voice attachment not decoded: %+v", updates[1].Message)
	}
}
