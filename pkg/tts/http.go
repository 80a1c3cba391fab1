package tts

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// maxResponseSize bounds what a provider may send back. TikTok inlines
	// base64 audio, so this has to comfortably exceed a few minutes of mp3.
	maxResponseSize = 32 << 20

	errorBodyPreview = 256
)

// send performs req and returns the full body of a 2xx response. Anything
// else is an ErrTransport.
func send(client *http.Client, provider string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, newError(provider, ErrTransport, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreview))
		return nil, newError(provider, ErrTransport,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(preview))), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, newError(provider, ErrTransport, "reading response body", err)
	}
	if len(body) > maxResponseSize {
		return nil, newError(provider, ErrTransport, fmt.Sprintf("response exceeds %d bytes", maxResponseSize), nil)
	}
	return body, nil
}

func defaultClient(client *http.Client) *http.Client {
	if client == nil {
		return http.DefaultClient
	}
	return client
}
