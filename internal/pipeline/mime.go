package pipeline

import "strings"

// MaxUploadBytes is the transport-level ceiling on a single audio download
// (20 MB, the Telegram bot API file limit). It is independent of
// [DefaultMaxChunkBytes]: the upload ceiling bounds what a transport accepts,
// the chunk threshold bounds what a single model call carries.
const MaxUploadBytes = 20 * 1024 * 1024

// acceptedMIME is the set of audio container types the pipeline accepts.
// Transports pre-check attachments against it before downloading.
var acceptedMIME = map[string]struct{}{
	"audio/mpeg":  {},
	"audio/wav":   {},
	"audio/x-wav": {},
	"audio/ogg":   {},
	"audio/x-m4a": {},
	"audio/mp4":   {},
	"audio/webm":  {},
	"audio/aac":   {},
	"audio/x-aac": {},
}

// AcceptedMIME reports whether mime names a supported audio type. Parameters
// after a semicolon (e.g. "audio/ogg; codecs=opus") are ignored.
func AcceptedMIME(mime string) bool {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	_, ok := acceptedMIME[strings.ToLower(strings.TrimSpace(mime))]
	return ok
}

// AcceptedMIMEList returns the supported types in a stable order, for user
// facing error messages.
func AcceptedMIMEList() []string {
	return []string{
		"audio/mpeg", "audio/wav", "audio/x-wav", "audio/ogg",
		"audio/x-m4a", "audio/mp4", "audio/webm", "audio/aac", "audio/x-aac",
	}
}
