package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sipeed/picotts/pkg/ssrf"
)

const maxRedirects = 10

// Materializer turns a Result into a fully written file at its artifact path.
type Materializer struct {
	client   *http.Client
	guard    *ssrf.Guard
	maxBytes int64
}

func NewMaterializer(client *http.Client) *Materializer {
	return &Materializer{
		client:   defaultClient(client),
		maxBytes: maxResponseSize,
	}
}

// WithGuard checks every hosted-audio URL, and each redirect it leads to,
// against g before fetching it.
func (m *Materializer) WithGuard(g *ssrf.Guard) *Materializer {
	m.guard = g
	return m
}

// Download writes r to r.ArtifactPath() and returns that path. The file is
// assembled under a temporary name and renamed into place, so the final
// path either holds the previous complete artifact or the new one.
func (m *Materializer) Download(ctx context.Context, r Result) (string, error) {
	if r == nil {
		return "", newError("", ErrIO, "nil result", nil)
	}
	path := r.ArtifactPath()
	if path == "" {
		return "", newError(r.Provider(), ErrIO, "result has no artifact path", nil)
	}

	var err error
	switch v := r.(type) {
	case *InlineEncoded:
		var audio []byte
		audio, err = base64.StdEncoding.DecodeString(v.Data)
		if err != nil {
			return "", newError(v.Provider(), ErrDecode, "inline audio is not valid base64", err)
		}
		err = writeArtifact(v.Provider(), path, bytes.NewReader(audio))
	case *RemoteURL:
		err = m.fetch(ctx, v, path)
	case *RawBytes:
		err = writeArtifact(v.Provider(), path, bytes.NewReader(v.Audio))
	default:
		return "", newError(r.Provider(), ErrParse, fmt.Sprintf("unsupported result type %T", r), nil)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func (m *Materializer) fetch(ctx context.Context, r *RemoteURL, path string) error {
	if err := m.guard.CheckURL(ctx, r.URL); err != nil {
		return newError(r.Provider(), ErrFetch, "refusing to download hosted audio", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return newError(r.Provider(), ErrFetch, "building request for "+r.URL, err)
	}

	resp, err := m.fetchClient().Do(req)
	if err != nil {
		return newError(r.Provider(), ErrFetch, "GET "+r.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(r.Provider(), ErrFetch, fmt.Sprintf("GET %s: HTTP %d", r.URL, resp.StatusCode), nil)
	}
	if resp.ContentLength > m.maxBytes {
		return newError(r.Provider(), ErrFetch, fmt.Sprintf("hosted audio is %d bytes, limit %d", resp.ContentLength, m.maxBytes), nil)
	}

	return writeArtifact(r.Provider(), path, &fetchReader{
		provider: r.Provider(),
		r:        io.LimitReader(resp.Body, m.maxBytes+1),
		limit:    m.maxBytes,
	})
}

func (m *Materializer) fetchClient() *http.Client {
	if m.guard == nil {
		return m.client
	}
	c := *m.client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return m.guard.CheckURL(req.Context(), req.URL.String())
	}
	return &c
}

// fetchReader tags read failures so they surface as ErrFetch rather than
// as a write failure, and stops once more than limit bytes arrived.
type fetchReader struct {
	provider string
	r        io.Reader
	limit    int64
	read     int64
}

func (f *fetchReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	f.read += int64(n)
	if f.read > f.limit {
		return n, newError(f.provider, ErrFetch, fmt.Sprintf("hosted audio exceeds %d bytes", f.limit), nil)
	}
	if err != nil && err != io.EOF {
		err = newError(f.provider, ErrFetch, "reading audio body", err)
	}
	return n, err
}

func writeArtifact(provider, path string, src io.Reader) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return newError(provider, ErrIO, "creating temporary artifact", err)
	}

	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if _, err := io.Copy(f, src); err != nil {
		var tagged *Error
		if errors.As(err, &tagged) {
			return tagged
		}
		return newError(provider, ErrIO, "writing artifact", err)
	}
	if err := f.Sync(); err != nil {
		return newError(provider, ErrIO, "syncing artifact", err)
	}
	if err := f.Close(); err != nil {
		return newError(provider, ErrIO, "closing artifact", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		committed = true
		return newError(provider, ErrIO, "moving artifact into place", err)
	}
	committed = true
	return nil
}
