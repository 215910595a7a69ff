package conn

import (
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"ssh-hub/internal/store"
)

// DefaultDialTimeout bounds connection establishment and authentication.
const DefaultDialTimeout = 30 * time.Second

// CredentialSource resolves server names to connection parameters. It is
// satisfied by *store.Store.
type CredentialSource interface {
	Get(name string) (store.Server, bool)
	DefaultName() (string, bool)
}

// Manager resolves target names to credentials and maintains at most one
// live session per target, establishing new transports on demand.
type Manager struct {
	creds       CredentialSource
	registry    *Registry
	dialTimeout time.Duration

	// locks serializes the find-or-create sequence per target name, so two
	// near-simultaneous connects to the same server cannot both dial.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewManager creates a connection manager backed by the given credential
// source.
func NewManager(creds CredentialSource) *Manager {
	return &Manager{
		creds:       creds,
		registry:    NewRegistry(),
		dialTimeout: DefaultDialTimeout,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (m *Manager) targetLock(name string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	lock, ok := m.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[name] = lock
	}
	return lock
}

// Connect resolves name (or the configured default when name is empty) and
// ensures a live session for it, reusing an existing one when possible. It
// returns a snapshot of the session taken under the registry lock; the
// second return value reports whether the session was reused.
func (m *Manager) Connect(name string) (Info, bool, error) {
	_, info, reused, err := m.connect(name)
	return info, reused, err
}

// connect is the shared find-or-create path. The returned *Session is only
// safe for its immutable fields (ID, Client); everything an external caller
// needs lives in the Info snapshot.
func (m *Manager) connect(name string) (*Session, Info, bool, error) {
	if name == "" {
		def, ok := m.creds.DefaultName()
		if !ok {
			return nil, Info{}, false, ErrNoTarget
		}
		name = def
	}

	srv, ok := m.creds.Get(name)
	if !ok {
		return nil, Info{}, false, &UnknownServerError{Name: name}
	}

	lock := m.targetLock(name)
	lock.Lock()
	defer lock.Unlock()

	if sess, info, ok := m.registry.FindLive(name); ok {
		return sess, info, true, nil
	}

	client, err := m.dial(srv)
	if err != nil {
		slog.Error("connection failed", "server", name, "err", err)
		return nil, Info{}, false, err
	}

	sess, info := m.registry.Add(name, client)
	slog.Info("connected", "server", name, "session", sess.ID)
	return sess, info, false, nil
}

// dial opens and authenticates a new transport. Key material takes
// precedence over a password when both are configured; with neither, the
// attempt proceeds with an empty auth list and is rejected by the server.
func (m *Manager) dial(srv store.Server) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User:            srv.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         m.dialTimeout,
	}

	switch {
	case srv.KeyPath != "":
		key, err := os.ReadFile(srv.KeyPath)
		if err != nil {
			return nil, &ConnectionError{Target: srv.Name, Err: err}
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, &ConnectionError{Target: srv.Name, Err: err}
		}
		config.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	case srv.Password != "":
		config.Auth = []ssh.AuthMethod{ssh.Password(srv.Password)}
	}

	if srv.ProxyCommand != "" {
		slog.Warn("proxy_command is not supported, connecting directly",
			"server", srv.Name, "proxy_command", srv.ProxyCommand)
	}

	port := srv.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(srv.Host, strconv.Itoa(port))

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, &ConnectionError{Target: srv.Name, Err: err}
	}
	return client, nil
}

// Disconnect terminates sessions. With an id it tears down that session and
// returns 1, or 0 when the id is unknown. With an empty id it tears down
// every registered session and returns the count.
func (m *Manager) Disconnect(id string) int {
	if id == "" {
		removed := m.registry.RemoveAll()
		for _, sess := range removed {
			closeTransport(sess)
		}
		slog.Info("disconnected all sessions", "count", len(removed))
		return len(removed)
	}

	sess, ok := m.registry.Remove(id)
	if !ok {
		return 0
	}
	closeTransport(sess)
	slog.Info("disconnected", "session", id)
	return 1
}

func closeTransport(sess *Session) {
	if sess.Client != nil {
		// Issue the close and move on; full teardown is not awaited.
		sess.Client.Close()
	}
}

// GetConnection returns a snapshot of the live session for a target name,
// if any.
func (m *Manager) GetConnection(name string) (Info, bool) {
	_, info, ok := m.registry.FindLive(name)
	return info, ok
}

// Status reports every registered session regardless of liveness.
func (m *Manager) Status() []Info {
	return m.registry.Snapshot()
}
