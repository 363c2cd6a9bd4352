// Package session persists named analysis sessions: the dataset in use, the
// active filter, and user preferences.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/co2lens-cli/internal/advisor"
	"github.com/KaramelBytes/co2lens-cli/internal/dataset"
	"github.com/KaramelBytes/co2lens-cli/internal/utils"
)

// FileName is the on-disk session file inside a session directory.
const FileName = "session.json"

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Session is one user's saved analysis state.
type Session struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	DataFile    string            `json:"data_file,omitempty"`
	Filter      dataset.Filter    `json:"filter"`
	Preferences map[string]string `json:"preferences"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	// Not serialized: on-disk location of session.json
	rootDir string `json:"-"`
}

// New constructs an in-memory session rooted at rootDir. Call Save to persist.
func New(name, dataFile, rootDir string) (*Session, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("invalid session name %q: use letters, digits, '.', '_' or '-'", name)
	}
	now := time.Now().UTC()
	return &Session{
		ID:          uuid.NewString(),
		Name:        name,
		DataFile:    dataFile,
		Preferences: map[string]string{},
		CreatedAt:   now,
		UpdatedAt:   now,
		rootDir:     rootDir,
	}, nil
}

// Load reads session.json from dir.
func Load(dir string) (*Session, error) {
	path := filepath.Join(dir, FileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if s.Preferences == nil {
		s.Preferences = map[string]string{}
	}
	s.rootDir = dir
	return &s, nil
}

// RootDir returns the on-disk session directory.
func (s *Session) RootDir() string { return s.rootDir }

// Save writes session.json atomically.
func (s *Session) Save() error {
	if s.rootDir == "" {
		return errors.New("session root directory not set")
	}
	if err := utils.EnsureDir(s.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	s.UpdatedAt = time.Now().UTC()
	data, err := utils.PrettyJSON(s)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(s.rootDir, FileName), data)
}

// SetPreference validates and stores one preference. An empty value removes it.
func (s *Session) SetPreference(key, value string) error {
	next := make(map[string]string, len(s.Preferences)+1)
	for k, v := range s.Preferences {
		next[k] = v
	}
	if value == "" {
		delete(next, key)
	} else {
		next[key] = value
	}
	p, err := advisor.ParsePreferences(next)
	if err != nil {
		return err
	}
	s.Preferences = p.Map()
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Prefs returns the parsed preferences. Invalid stored values are dropped.
func (s *Session) Prefs() advisor.Preferences {
	p, err := advisor.ParsePreferences(s.Preferences)
	if err != nil {
		return advisor.Preferences{}
	}
	return p
}

// Remove deletes the session directory and everything saved under it.
func (s *Session) Remove() error {
	if s.rootDir == "" {
		return errors.New("session root directory not set")
	}
	if _, err := os.Stat(filepath.Join(s.rootDir, FileName)); err != nil {
		return fmt.Errorf("refusing to remove %s: %w", s.rootDir, err)
	}
	if err := os.RemoveAll(s.rootDir); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// SetFilter replaces the active filter.
func (s *Session) SetFilter(f dataset.Filter) {
	s.Filter = f
	s.UpdatedAt = time.Now().UTC()
}

// Dir returns the directory for the named session under root.
func Dir(root, name string) (string, error) {
	if name == "" {
		return "", errors.New("session name is required")
	}
	if !validName.MatchString(name) {
		return "", fmt.Errorf("invalid session name %q", name)
	}
	return filepath.Join(root, name), nil
}

// Create initializes and saves a new session, refusing to overwrite an existing one.
func Create(root, name, dataFile string) (*Session, error) {
	dir, err := Dir(root, name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
		return nil, fmt.Errorf("session already exists at %s", dir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat session: %w", err)
	}
	s, err := New(name, dataFile, dir)
	if err != nil {
		return nil, err
	}
	if err := s.Save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Discover loads the session enclosing start (or the working directory when
// start is empty). It returns nil, nil when there is none.
func Discover(start string) (*Session, error) {
	dir, err := utils.FindUp(start, FileName)
	if err != nil {
		return nil, nil
	}
	return Load(dir)
}

// Open loads the named session under root.
func Open(root, name string) (*Session, error) {
	dir, err := Dir(root, name)
	if err != nil {
		return nil, err
	}
	return Load(dir)
}

// List loads every session under root, sorted by name. Unreadable entries are skipped.
func List(root string) ([]*Session, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}
	var out []*Session
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s, err := Load(filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindByID returns the session with the given id under root.
func FindByID(root, id string) (*Session, error) {
	all, err := List(root)
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.ID == id || s.Name == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("session %q not found", id)
}
