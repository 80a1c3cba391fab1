package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	TTSMP3Name = "ttsmp3"

	ttsmp3Source = "ttsmp3"
)

// TTSMP3Provider posts a form to ttsmp3.com and receives a JSON document
// pointing at the generated mp3.
type TTSMP3Provider struct {
	endpoint string
	client   *http.Client
}

func NewTTSMP3Provider(endpoint string, client *http.Client) *TTSMP3Provider {
	return &TTSMP3Provider{
		endpoint: endpoint,
		client:   defaultClient(client),
	}
}

func (p *TTSMP3Provider) Name() string {
	return TTSMP3Name
}

func (p *TTSMP3Provider) Synthesize(ctx context.Context, voice, text string) (Result, error) {
	form := url.Values{}
	form.Set("msg", text)
	form.Set("lang", voice)
	form.Set("source", ttsmp3Source)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, newError(TTSMP3Name, ErrTransport, "building request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := send(p.client, TTSMP3Name, req)
	if err != nil {
		return nil, err
	}
	return parseTTSMP3Response(body)
}

type ttsmp3Response struct {
	Error    *int    `json:"Error"`
	Speaker  *string `json:"Speaker"`
	Cached   *int    `json:"Cached"`
	TaskType *string `json:"tasktype"`
	URL      string  `json:"URL"`
	MP3      string  `json:"MP3"`
	Text     string  `json:"Text"`
}

// parseTTSMP3Response rejects a non-zero Error before anything else is
// looked at. An absent Error is a parse failure, not an implicit success.
func parseTTSMP3Response(body []byte) (*RemoteURL, error) {
	var resp ttsmp3Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, newError(TTSMP3Name, ErrParse, "decoding JSON", err)
	}

	if resp.Error == nil {
		return nil, newError(TTSMP3Name, ErrParse, "missing Error", nil)
	}
	if *resp.Error != 0 {
		msg := resp.Text
		if msg == "" {
			msg = fmt.Sprintf("error code %d", *resp.Error)
		}
		return nil, newError(TTSMP3Name, ErrProvider, msg, nil)
	}

	switch {
	case resp.Speaker == nil:
		return nil, newError(TTSMP3Name, ErrParse, "missing Speaker", nil)
	case resp.Cached == nil:
		return nil, newError(TTSMP3Name, ErrParse, "missing Cached", nil)
	case resp.TaskType == nil:
		return nil, newError(TTSMP3Name, ErrParse, "missing tasktype", nil)
	case resp.URL == "":
		return nil, newError(TTSMP3Name, ErrParse, "missing URL", nil)
	}

	return &RemoteURL{
		artifact:  artifact{provider: TTSMP3Name},
		URL:       resp.URL,
		ErrorCode: *resp.Error,
		Speaker:   *resp.Speaker,
		Cached:    *resp.Cached,
		TaskType:  *resp.TaskType,
		MP3:       resp.MP3,
	}, nil
}
