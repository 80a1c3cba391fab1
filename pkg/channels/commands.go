package channels

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// CommandHandler processes a prefixed command and returns the reply text.
// args contains everything after the command name (for "tts!setvoice sapi-Sam",
// args = "sapi-Sam").
type CommandHandler func(ctx context.Context, args string, msg Message) (string, error)

// CommandEntry holds a registered command.
type CommandEntry struct {
	Name        string // without the prefix, e.g. "join"
	Usage       string // argument synopsis, may be empty
	Description string
	Handler     CommandHandler
}

// CommandRegistry is a thread-safe registry of bot commands.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]*CommandEntry
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*CommandEntry),
	}
}

// Register adds or replaces a command. Names are case-insensitive.
func (r *CommandRegistry) Register(name, usage, description string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name = strings.ToLower(name)
	r.commands[name] = &CommandEntry{
		Name:        name,
		Usage:       usage,
		Description: description,
		Handler:     handler,
	}
}

func (r *CommandRegistry) Get(name string) (*CommandEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.commands[strings.ToLower(name)]
	return entry, ok
}

// List returns all registered commands sorted by name.
func (r *CommandRegistry) List() []*CommandEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*CommandEntry, 0, len(r.commands))
	for _, e := range r.commands {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// ParseCommand splits content into a command name and its arguments. ok is
// false when content does not start with prefix or names no command.
func ParseCommand(content, prefix string) (name, args string, ok bool) {
	rest, found := strings.CutPrefix(content, prefix)
	if !found {
		return "", "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", "", false
	}
	name = strings.ToLower(fields[0])
	args = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), fields[0]))
	return name, args, true
}
