package conn

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"
)

// Session represents one live SSH transport to a configured server.
type Session struct {
	ID          string
	ServerName  string
	Connected   bool
	ConnectedAt time.Time
	Client      *ssh.Client
}

// Info is the serializable view of a session, as reported by status.
type Info struct {
	ID          string    `json:"id"`
	ServerName  string    `json:"server_name"`
	Connected   bool      `json:"connected"`
	ConnectedAt time.Time `json:"connected_at"`
}

func (s *Session) info() Info {
	return Info{
		ID:          s.ID,
		ServerName:  s.ServerName,
		Connected:   s.Connected,
		ConnectedAt: s.ConnectedAt,
	}
}

// sessionSeq disambiguates ids generated within the same millisecond.
var sessionSeq atomic.Uint64

func newSessionID() string {
	return fmt.Sprintf("conn-%d-%d", time.Now().UnixMilli(), sessionSeq.Add(1))
}

// Registry tracks live sessions by id. It is the sole owner of every
// registered session; all field mutation happens under its lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Add registers a freshly established transport and returns its session
// along with an Info snapshot taken under the lock. Callers outside the
// registry read the snapshot; only ID and Client of the returned session
// are safe to touch without the lock.
func (r *Registry) Add(serverName string, client *ssh.Client) (*Session, Info) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := &Session{
		ID:          newSessionID(),
		ServerName:  serverName,
		Connected:   true,
		ConnectedAt: time.Now(),
		Client:      client,
	}
	r.sessions[sess.ID] = sess
	return sess, sess.info()
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	return sess, ok
}

// FindLive returns the first registered session for serverName whose
// connected flag is still set, together with an Info snapshot taken
// under the lock.
func (r *Registry) FindLive(serverName string) (*Session, Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sess := range r.sessions {
		if sess.ServerName == serverName && sess.Connected {
			return sess, sess.info(), true
		}
	}
	return nil, Info{}, false
}

// MarkDisconnected flags a session whose transport turned out to be dead.
// The entry stays in the registry until an explicit disconnect; the reuse
// scan simply skips it.
func (r *Registry) MarkDisconnected(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[id]; ok {
		sess.Connected = false
	}
}

// Remove deletes the session with the given id and returns it so the caller
// can close its transport. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return sess, ok
}

// RemoveAll empties the registry and returns the removed sessions.
func (r *Registry) RemoveAll() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]*Session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		removed = append(removed, sess)
		delete(r.sessions, id)
	}
	return removed
}

// Snapshot returns the serializable state of every registered session,
// live or not.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.sessions))
	for _, sess := range r.sessions {
		infos = append(infos, sess.info())
	}
	return infos
}
