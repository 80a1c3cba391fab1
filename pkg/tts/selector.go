package tts

import (
	"fmt"
	"strings"
)

// Selector identifies a provider and one of its voices. Its string form is
// "<provider>-<voice>", split at the first '-' so voice ids such as
// "en_us_002" or "en-US-Wavenet-A" survive intact.
type Selector struct {
	Provider string
	Voice    string
}

func ParseSelector(s string) (Selector, error) {
	provider, voice, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok || provider == "" || voice == "" {
		return Selector{}, newError("", ErrUnknownProvider, fmt.Sprintf("invalid voice selector %q, want <provider>-<voice>", s), nil)
	}
	return Selector{Provider: strings.ToLower(provider), Voice: voice}, nil
}

func (s Selector) String() string {
	return s.Provider + "-" + s.Voice
}
