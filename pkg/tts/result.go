package tts

import "encoding/json"

// Result is the normalized output of one provider call. The set of
// implementations is closed: *InlineEncoded, *RemoteURL and *RawBytes. Which
// one comes back depends only on the provider that handled the request.
type Result interface {
	// Provider returns the tag of the provider that produced the result.
	Provider() string
	// ArtifactPath is the file the result materializes to. It is empty
	// until the Dispatcher binds it.
	ArtifactPath() string

	bind(path string)
}

type artifact struct {
	provider string
	path     string
}

func (a *artifact) Provider() string     { return a.provider }
func (a *artifact) ArtifactPath() string { return a.path }
func (a *artifact) bind(path string)     { a.path = path }

// InlineEncoded carries base64-encoded audio embedded in the provider's JSON
// envelope, together with the envelope's status fields.
type InlineEncoded struct {
	artifact

	Data       string // base64 audio
	Extra      json.RawMessage
	Message    string
	StatusCode int
	StatusMsg  string
}

// RemoteURL points at audio hosted by the provider. ErrorCode has already
// been checked and is always zero on a constructed value.
type RemoteURL struct {
	artifact

	URL       string
	ErrorCode int
	Speaker   string
	Cached    int
	TaskType  string
	MP3       string
}

// RawBytes is audio returned directly as the response body.
type RawBytes struct {
	artifact

	Audio []byte
}
