package channels

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"
)

var proxyEnvKeys = []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy", "ALL_PROXY", "all_proxy"}

// applyDiscordProxy routes both the REST client and the gateway websocket
// through proxyAddr, or through the first proxy found in the environment
// when proxyAddr is empty.
func applyDiscordProxy(session *discordgo.Session, proxyAddr string) error {
	if proxyAddr == "" {
		for _, key := range proxyEnvKeys {
			if v := os.Getenv(key); v != "" {
				proxyAddr = v
				break
			}
		}
	}
	if proxyAddr == "" {
		return nil
	}

	proxyURL, err := url.Parse(proxyAddr)
	if err != nil {
		return fmt.Errorf("invalid discord proxy URL %q: %w", proxyAddr, err)
	}
	proxy := http.ProxyURL(proxyURL)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy
	session.Client.Transport = transport

	// discordgo starts out sharing websocket.DefaultDialer
	dialer := *websocket.DefaultDialer
	if session.Dialer != nil {
		dialer = *session.Dialer
	}
	dialer.Proxy = proxy
	session.Dialer = &dialer
	return nil
}
