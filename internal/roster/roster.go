package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidName rejects admin nicks and channel names that could never be
// valid on an IRC network. Nothing is written when validation fails.
var ErrInvalidName = errors.New("invalid name")

const maxNameLen = 50

// Repository is the durable side of the roster. The service trusts it
// completely: memory is updated only after the repository acknowledges.
type Repository interface {
	Admins(ctx context.Context) ([]string, error)
	Channels(ctx context.Context) ([]string, error)
	AddAdmin(ctx context.Context, nick string) (bool, error)
	RemoveAdmin(ctx context.Context, nick string) (bool, error)
	AddChannel(ctx context.Context, name string) (bool, error)
	RemoveChannel(ctx context.Context, name string) (bool, error)
}

// Service holds the authoritative in-memory view of admins and autojoin
// channels. Lookups are hot (every privileged command and every autojoin),
// mutations are rare, so the sets live behind an RWMutex. Keys are
// case-folded, values keep the display form.
type Service struct {
	mu       sync.RWMutex
	repo     Repository
	admins   map[string]string
	channels map[string]string
}

// New loads both rosters from the repository. A load failure is fatal to the
// caller: running with a guessed admin list is worse than not starting.
func New(ctx context.Context, repo Repository) (*Service, error) {
	s := &Service{
		repo:     repo,
		admins:   make(map[string]string),
		channels: make(map[string]string),
	}
	admins, err := repo.Admins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load admins: %w", err)
	}
	for _, a := range admins {
		s.admins[foldNick(a)] = a
	}
	channels, err := repo.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load channels: %w", err)
	}
	for _, c := range channels {
		s.channels[foldNick(c)] = c
	}
	return s, nil
}

// foldNick lowercases ASCII only, matching the NOCASE collation of the
// backing tables.
func foldNick(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// NormalizeChannel trims a channel argument and prefixes '#' when the caller
// left it off, so "!join test" lands in #test.
func NormalizeChannel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	if !strings.HasPrefix(name, "#") && !strings.HasPrefix(name, "&") {
		name = "#" + name
	}
	return name
}

func validNick(nick string) error {
	if nick == "" || len(nick) > maxNameLen {
		return fmt.Errorf("%w: %q", ErrInvalidName, nick)
	}
	if strings.ContainsAny(nick, " ,") || strings.HasPrefix(nick, "#") || strings.HasPrefix(nick, "&") {
		return fmt.Errorf("%w: %q", ErrInvalidName, nick)
	}
	return nil
}

func validChannel(name string) error {
	if name == "" || len(name) > maxNameLen {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !strings.HasPrefix(name, "#") && !strings.HasPrefix(name, "&") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(name[1:], " ,#&\x07") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (s *Service) IsAdmin(nick string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[foldNick(nick)]
	return ok
}

func (s *Service) IsChannel(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.channels[foldNick(name)]
	return ok
}

// AddAdmin grants admin rights. Adding a nick that already holds them is a
// successful no-op reported as added=false.
func (s *Service) AddAdmin(ctx context.Context, nick string) (bool, error) {
	nick = strings.TrimSpace(nick)
	if err := validNick(nick); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := foldNick(nick)
	if _, ok := s.admins[key]; ok {
		return false, nil
	}
	if _, err := s.repo.AddAdmin(ctx, nick); err != nil {
		return false, fmt.Errorf("failed to persist admin %q: %w", nick, err)
	}
	s.admins[key] = nick
	return true, nil
}

func (s *Service) RemoveAdmin(ctx context.Context, nick string) (bool, error) {
	nick = strings.TrimSpace(nick)
	if err := validNick(nick); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := foldNick(nick)
	if _, ok := s.admins[key]; !ok {
		return false, nil
	}
	if _, err := s.repo.RemoveAdmin(ctx, nick); err != nil {
		return false, fmt.Errorf("failed to remove admin %q: %w", nick, err)
	}
	delete(s.admins, key)
	return true, nil
}

func (s *Service) AddChannel(ctx context.Context, name string) (bool, error) {
	name = NormalizeChannel(name)
	if err := validChannel(name); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := foldNick(name)
	if _, ok := s.channels[key]; ok {
		return false, nil
	}
	if _, err := s.repo.AddChannel(ctx, name); err != nil {
		return false, fmt.Errorf("failed to persist channel %q: %w", name, err)
	}
	s.channels[key] = name
	return true, nil
}

func (s *Service) RemoveChannel(ctx context.Context, name string) (bool, error) {
	name = NormalizeChannel(name)
	if err := validChannel(name); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := foldNick(name)
	if _, ok := s.channels[key]; !ok {
		return false, nil
	}
	if _, err := s.repo.RemoveChannel(ctx, name); err != nil {
		return false, fmt.Errorf("failed to remove channel %q: %w", name, err)
	}
	delete(s.channels, key)
	return true, nil
}

func (s *Service) Admins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.admins)
}

func (s *Service) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.channels)
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
