package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

const (
	TikTokName = "tiktok"

	// the invoke endpoint rejects requests without a mobile client UA
	tiktokUserAgent = "com.zhiliaoapp.musically/2022600030 (Linux; U; Android 7.1.2; es_ES; SM-G988N; Build/NRD90M;tt-ok/3.12.13.1)"
)

// TikTokProvider talks to TikTok's text/speech/invoke API. The response is
// always HTTP 200; success is decided by status_code inside the JSON.
type TikTokProvider struct {
	endpoint  string
	sessionID string
	client    *http.Client
}

func NewTikTokProvider(endpoint, sessionID string, client *http.Client) *TikTokProvider {
	return &TikTokProvider{
		endpoint:  endpoint,
		sessionID: sessionID,
		client:    defaultClient(client),
	}
}

func (p *TikTokProvider) Name() string {
	return TikTokName
}

func (p *TikTokProvider) Synthesize(ctx context.Context, voice, text string) (Result, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, newError(TikTokName, ErrTransport, "invalid endpoint", err)
	}
	q := u.Query()
	q.Set("text_speaker", voice)
	q.Set("req_text", text)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return nil, newError(TikTokName, ErrTransport, "building request", err)
	}
	req.Header.Set("User-Agent", tiktokUserAgent)
	if p.sessionID != "" {
		req.Header.Set("Cookie", "sessionid="+p.sessionID)
	}

	body, err := send(p.client, TikTokName, req)
	if err != nil {
		return nil, err
	}
	return parseTikTokResponse(body)
}

type tiktokResponse struct {
	Data *struct {
		VStr *string `json:"v_str"`
	} `json:"data"`
	Extra      json.RawMessage `json:"extra"`
	Message    *string         `json:"message"`
	StatusCode *int            `json:"status_code"`
	StatusMsg  *string         `json:"status_msg"`
}

// parseTikTokResponse validates the envelope and the embedded status code.
// A missing or mistyped field fails the whole response.
func parseTikTokResponse(body []byte) (*InlineEncoded, error) {
	var resp tiktokResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, newError(TikTokName, ErrParse, "decoding JSON", err)
	}

	switch {
	case resp.StatusCode == nil:
		return nil, newError(TikTokName, ErrParse, "missing status_code", nil)
	case resp.StatusMsg == nil:
		return nil, newError(TikTokName, ErrParse, "missing status_msg", nil)
	case resp.Message == nil:
		return nil, newError(TikTokName, ErrParse, "missing message", nil)
	case len(resp.Extra) == 0:
		return nil, newError(TikTokName, ErrParse, "missing extra", nil)
	}

	if *resp.StatusCode != 0 {
		msg := *resp.StatusMsg
		if msg == "" {
			msg = *resp.Message
		}
		return nil, newError(TikTokName, ErrProvider, msg, nil)
	}

	if resp.Data == nil || resp.Data.VStr == nil {
		return nil, newError(TikTokName, ErrParse, "missing data.v_str", nil)
	}

	return &InlineEncoded{
		artifact:   artifact{provider: TikTokName},
		Data:       *resp.Data.VStr,
		Extra:      resp.Extra,
		Message:    *resp.Message,
		StatusCode: *resp.StatusCode,
		StatusMsg:  *resp.StatusMsg,
	}, nil
}
