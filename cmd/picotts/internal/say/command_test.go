package say

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picotts/cmd/picotts/internal"
)

func TestNewSayCommand(t *testing.T) {
	cmd := NewSayCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "say", cmd.Name())
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("voice"))
	assert.NotNil(t, cmd.Flags().Lookup("dir"))
	assert.False(t, cmd.HasSubCommands())
}

func TestSayWritesTestArtifact(t *testing.T) {
	var gotMsg string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMsg = r.URL.Query().Get("msg")
		w.Write([]byte("sapi-audio"))
	}))
	defer srv.Close()

	t.Setenv("PICOTTS_TTS_PROVIDERS_SAPI_ENDPOINT", srv.URL)
	internal.SetConfigPath(filepath.Join(t.TempDir(), "missing.json"))
	t.Cleanup(func() { internal.SetConfigPath("") })

	dir := t.TempDir()
	cmd := NewSayCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--voice", "sapi-Justin", "--dir", dir, "Hello,", "world!"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "Hello, world!", gotMsg)

	path := strings.TrimSpace(out.String())
	assert.Equal(t, filepath.Join(dir, "test.mp3"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sapi-audio", string(data))
}

func TestSayUnknownProvider(t *testing.T) {
	internal.SetConfigPath(filepath.Join(t.TempDir(), "missing.json"))
	t.Cleanup(func() { internal.SetConfigPath("") })

	cmd := NewSayCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--voice", "foo-bar", "--dir", t.TempDir(), "hi"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tts provider")
}
