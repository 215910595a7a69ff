package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Server holds the connection parameters for one configured remote host.
type Server struct {
	Name         string `json:"name"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password,omitempty"`
	KeyPath      string `json:"key_path,omitempty"`
	Description  string `json:"description,omitempty"`
	ProxyCommand string `json:"proxy_command,omitempty"`
}

// document is the on-disk shape of the whole store.
type document struct {
	DefaultServer string            `json:"default_server,omitempty"`
	Servers       map[string]Server `json:"servers"`
}

// Store is a registry of server configurations persisted as a single JSON
// file. Every mutation rewrites the whole file before returning.
type Store struct {
	path string
	mu   sync.Mutex
	doc  document
}

// DefaultPath returns the conventional store location under the user config
// directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ssh-hub", "servers.json"), nil
}

// Open loads the store at path. A missing or unreadable file yields an empty
// store rather than an error; only writes are allowed to fail loudly.
func Open(path string) *Store {
	s := &Store{
		path: path,
		doc:  document{Servers: make(map[string]Server)},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("unreadable server store, starting empty", "path", path, "err", err)
		}
		return s
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("corrupt server store, starting empty", "path", path, "err", err)
		return s
	}
	if doc.Servers == nil {
		doc.Servers = make(map[string]Server)
	}
	s.doc = doc
	return s
}

// Get returns the configuration for name.
func (s *Store) Get(name string) (Server, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	srv, ok := s.doc.Servers[name]
	return srv, ok
}

// List returns all configured servers sorted by name. A non-empty keyword
// filters by substring match on name, host and description.
func (s *Store) List(keyword string) []Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	servers := make([]Server, 0, len(s.doc.Servers))
	for _, srv := range s.doc.Servers {
		if keyword != "" && !matches(srv, keyword) {
			continue
		}
		servers = append(servers, srv)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })
	return servers
}

func matches(srv Server, keyword string) bool {
	keyword = strings.ToLower(keyword)
	for _, field := range []string{srv.Name, srv.Host, srv.Description} {
		if strings.Contains(strings.ToLower(field), keyword) {
			return true
		}
	}
	return false
}

// Add registers a new server configuration. Adding a name that already
// exists fails with ErrDuplicateServer and leaves the existing entry
// untouched. A zero port defaults to 22.
func (s *Store) Add(srv Server) (Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.doc.Servers[srv.Name]; exists {
		return Server{}, fmt.Errorf("add %q: %w", srv.Name, ErrDuplicateServer)
	}
	if srv.Port == 0 {
		srv.Port = 22
	}

	s.doc.Servers[srv.Name] = srv
	if err := s.save(); err != nil {
		delete(s.doc.Servers, srv.Name)
		return Server{}, err
	}
	return srv, nil
}

// Delete removes a server configuration. When the removed server was the
// configured default, the default pointer is cleared as well.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	srv, exists := s.doc.Servers[name]
	if !exists {
		return fmt.Errorf("delete %q: %w", name, ErrServerNotFound)
	}

	prevDefault := s.doc.DefaultServer
	delete(s.doc.Servers, name)
	if s.doc.DefaultServer == name {
		s.doc.DefaultServer = ""
	}
	if err := s.save(); err != nil {
		s.doc.Servers[name] = srv
		s.doc.DefaultServer = prevDefault
		return err
	}
	return nil
}

// DefaultName returns the name of the configured default server.
func (s *Store) DefaultName() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.DefaultServer == "" {
		return "", false
	}
	return s.doc.DefaultServer, true
}

// GetDefault returns the configuration of the default server.
func (s *Store) GetDefault() (Server, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.DefaultServer == "" {
		return Server{}, false
	}
	srv, ok := s.doc.Servers[s.doc.DefaultServer]
	return srv, ok
}

// SetDefault points the default at an existing server name.
func (s *Store) SetDefault(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.doc.Servers[name]; !exists {
		return fmt.Errorf("set default %q: %w", name, ErrServerNotFound)
	}

	prev := s.doc.DefaultServer
	s.doc.DefaultServer = name
	if err := s.save(); err != nil {
		s.doc.DefaultServer = prev
		return err
	}
	return nil
}

// save rewrites the whole document to disk. Callers hold s.mu.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		slog.Error("failed to create store directory", "path", s.path, "err", err)
		return &PersistenceError{Path: s.path, Err: err}
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return &PersistenceError{Path: s.path, Err: err}
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		slog.Error("failed to write server store", "path", s.path, "err", err)
		return &PersistenceError{Path: s.path, Err: err}
	}
	return nil
}
