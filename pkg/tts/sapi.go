package tts

import (
	"context"
	"net/http"
	"net/url"
)

const SAPIName = "sapi"

// SAPIProvider calls a Microsoft SAPI voice server that answers with the
// audio itself, no envelope.
type SAPIProvider struct {
	endpoint string
	client   *http.Client
}

func NewSAPIProvider(endpoint string, client *http.Client) *SAPIProvider {
	return &SAPIProvider{
		endpoint: endpoint,
		client:   defaultClient(client),
	}
}

func (p *SAPIProvider) Name() string {
	return SAPIName
}

func (p *SAPIProvider) Synthesize(ctx context.Context, voice, text string) (Result, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, newError(SAPIName, ErrTransport, "invalid endpoint", err)
	}
	q := u.Query()
	q.Set("msg", text)
	q.Set("voice", voice)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return nil, newError(SAPIName, ErrTransport, "building request", err)
	}

	body, err := send(p.client, SAPIName, req)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, newError(SAPIName, ErrParse, "empty audio body", nil)
	}

	return &RawBytes{
		artifact: artifact{provider: SAPIName},
		Audio:    body,
	}, nil
}
