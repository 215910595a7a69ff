package tools

import (
	"encoding/json"
	"fmt"
	"time"

	mcp_golang "github.com/metoro-io/mcp-golang"

	"ssh-hub/internal/conn"
	"ssh-hub/internal/policy"
	"ssh-hub/internal/store"
)

const systemInfoCommand = "uname -a"

// Handlers wires the server store, the connection manager and the policy
// guard into the MCP tool surface. Every failure is rendered as an
// {"error": ...} payload instead of a protocol-level fault.
type Handlers struct {
	store   *store.Store
	manager *conn.Manager
	guard   *policy.Guard
}

// NewHandlers creates the tool handler set.
func NewHandlers(st *store.Store, manager *conn.Manager, guard *policy.Guard) *Handlers {
	return &Handlers{
		store:   st,
		manager: manager,
		guard:   guard,
	}
}

// Register attaches all tools to the MCP server.
func (h *Handlers) Register(server *mcp_golang.Server) error {
	registrations := []struct {
		name        string
		description string
		handler     any
	}{
		{"connect", "Connect to a configured SSH server, reusing a live connection when one exists", h.Connect},
		{"disconnect", "Close one connection by id, or all connections when no id is given", h.Disconnect},
		{"execute", "Execute a command on a configured SSH server", h.Execute},
		{"get_status", "Show all tracked connections", h.GetStatus},
		{"list_servers", "List configured SSH servers", h.ListServers},
		{"add_server", "Register a new SSH server configuration", h.AddServer},
		{"delete_server", "Remove an SSH server configuration", h.DeleteServer},
		{"set_default", "Set the default SSH server", h.SetDefault},
	}

	for _, reg := range registrations {
		if err := server.RegisterTool(reg.name, reg.description, reg.handler); err != nil {
			return fmt.Errorf("register tool %s: %w", reg.name, err)
		}
	}
	return nil
}

// SessionPayload is the serialized connect result.
type SessionPayload struct {
	ID          string `json:"id"`
	ServerName  string `json:"server_name"`
	Connected   bool   `json:"connected"`
	ConnectedAt string `json:"connected_at"`
	Reused      bool   `json:"reused"`
}

// Connect handles the connect tool.
func (h *Handlers) Connect(args ConnectArgs) (*mcp_golang.ToolResponse, error) {
	if srv, ok := h.resolve(args.ServerName); ok {
		if err := h.guard.CheckHost(srv.Host); err != nil {
			return errorResponse(err), nil
		}
	}

	info, reused, err := h.manager.Connect(args.ServerName)
	if err != nil {
		return errorResponse(err), nil
	}

	return jsonResponse(SessionPayload{
		ID:          info.ID,
		ServerName:  info.ServerName,
		Connected:   info.Connected,
		ConnectedAt: info.ConnectedAt.Format(time.RFC3339),
		Reused:      reused,
	})
}

// resolve maps an optional server name to its credentials, falling back to
// the default pointer the same way the manager does.
func (h *Handlers) resolve(name string) (store.Server, bool) {
	if name == "" {
		return h.store.GetDefault()
	}
	return h.store.Get(name)
}

// DisconnectPayload is the serialized disconnect result.
type DisconnectPayload struct {
	Disconnected int `json:"disconnected"`
}

// Disconnect handles the disconnect tool.
func (h *Handlers) Disconnect(args DisconnectArgs) (*mcp_golang.ToolResponse, error) {
	count := h.manager.Disconnect(args.ConnectionID)
	return jsonResponse(DisconnectPayload{Disconnected: count})
}

// ExecutePayload is the serialized execution result.
type ExecutePayload struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   *int   `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
}

// Execute handles the execute tool.
func (h *Handlers) Execute(args ExecuteArgs) (*mcp_golang.ToolResponse, error) {
	if err := h.guard.CheckCommand(args.ServerName, args.Command); err != nil {
		return errorResponse(err), nil
	}

	timeout := 30 * time.Second
	if args.Timeout != nil {
		if *args.Timeout < 0 {
			return errorResponse(fmt.Errorf("timeout must be zero or positive, got %d", *args.Timeout)), nil
		}
		timeout = time.Duration(*args.Timeout) * time.Second
	}

	res, err := h.manager.Execute(args.ServerName, args.Command, timeout)
	if err != nil {
		return errorResponse(err), nil
	}

	return jsonResponse(ExecutePayload{
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		ExitCode:   res.ExitCode,
		DurationMs: res.Duration.Milliseconds(),
	})
}

// StatusPayload is the serialized registry snapshot.
type StatusPayload struct {
	Connections []conn.Info `json:"connections"`
	Total       int         `json:"total"`
}

// GetStatus handles the get_status tool.
func (h *Handlers) GetStatus(args GetStatusArgs) (*mcp_golang.ToolResponse, error) {
	infos := h.manager.Status()
	return jsonResponse(StatusPayload{Connections: infos, Total: len(infos)})
}

// ServerPayload is one entry of the list_servers result. Passwords are never
// included.
type ServerPayload struct {
	Name         string `json:"name"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Username     string `json:"username"`
	KeyPath      string `json:"key_path,omitempty"`
	Description  string `json:"description,omitempty"`
	ProxyCommand string `json:"proxy_command,omitempty"`
	IsDefault    bool   `json:"is_default"`
	SystemInfo   string `json:"system_info,omitempty"`
}

// ListServers handles the list_servers tool.
func (h *Handlers) ListServers(args ListServersArgs) (*mcp_golang.ToolResponse, error) {
	defaultName, _ := h.store.DefaultName()

	servers := h.store.List(args.Keyword)
	payload := make([]ServerPayload, 0, len(servers))
	for _, srv := range servers {
		entry := ServerPayload{
			Name:         srv.Name,
			Host:         srv.Host,
			Port:         srv.Port,
			Username:     srv.Username,
			KeyPath:      srv.KeyPath,
			Description:  srv.Description,
			ProxyCommand: srv.ProxyCommand,
			IsDefault:    srv.Name == defaultName,
		}
		// Only servers that already have a live session are probed;
		// listing never opens new connections.
		if args.IncludeSystemInfo {
			if _, ok := h.manager.GetConnection(srv.Name); ok {
				if res, err := h.manager.Execute(srv.Name, systemInfoCommand, 10*time.Second); err == nil {
					entry.SystemInfo = res.Stdout
				}
			}
		}
		payload = append(payload, entry)
	}
	return jsonResponse(payload)
}

// AddServer handles the add_server tool.
func (h *Handlers) AddServer(args AddServerArgs) (*mcp_golang.ToolResponse, error) {
	if args.Name == "" || args.Host == "" || args.Username == "" {
		return errorResponse(fmt.Errorf("name, host and username are required")), nil
	}

	srv, err := h.store.Add(store.Server{
		Name:         args.Name,
		Host:         args.Host,
		Port:         args.Port,
		Username:     args.Username,
		Password:     args.Password,
		KeyPath:      args.KeyPath,
		Description:  args.Description,
		ProxyCommand: args.ProxyCommand,
	})
	if err != nil {
		return errorResponse(err), nil
	}

	return jsonResponse(ServerPayload{
		Name:         srv.Name,
		Host:         srv.Host,
		Port:         srv.Port,
		Username:     srv.Username,
		KeyPath:      srv.KeyPath,
		Description:  srv.Description,
		ProxyCommand: srv.ProxyCommand,
	})
}

// DeleteServer handles the delete_server tool.
func (h *Handlers) DeleteServer(args DeleteServerArgs) (*mcp_golang.ToolResponse, error) {
	if err := h.store.Delete(args.Name); err != nil {
		return errorResponse(err), nil
	}
	return jsonResponse(map[string]bool{"deleted": true})
}

// SetDefault handles the set_default tool.
func (h *Handlers) SetDefault(args SetDefaultArgs) (*mcp_golang.ToolResponse, error) {
	if err := h.store.SetDefault(args.Name); err != nil {
		return errorResponse(err), nil
	}
	return jsonResponse(map[string]string{"default": args.Name})
}

func jsonResponse(v any) (*mcp_golang.ToolResponse, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResponse(err), nil
	}
	return mcp_golang.NewToolResponse(mcp_golang.NewTextContent(string(data))), nil
}

func errorResponse(err error) *mcp_golang.ToolResponse {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return mcp_golang.NewToolResponse(mcp_golang.NewTextContent(string(data)))
}
