package tools

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	mcp_golang "github.com/metoro-io/mcp-golang"

	"ssh-hub/internal/conn"
	"ssh-hub/internal/policy"
	"ssh-hub/internal/store"
)

func newHandlers(t *testing.T, cfg policy.Config) (*Handlers, *store.Store) {
	t.Helper()
	st := store.Open(filepath.Join(t.TempDir(), "servers.json"))
	manager := conn.NewManager(st)
	return NewHandlers(st, manager, policy.NewGuard(cfg)), st
}

func payloadText(t *testing.T, resp *mcp_golang.ToolResponse) string {
	t.Helper()
	if resp == nil || len(resp.Content) == 0 || resp.Content[0].TextContent == nil {
		t.Fatal("Response has no text content")
	}
	return resp.Content[0].TextContent.Text
}

func decodePayload(t *testing.T, resp *mcp_golang.ToolResponse, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(payloadText(t, resp)), v); err != nil {
		t.Fatalf("Failed to decode payload %q: %v", payloadText(t, resp), err)
	}
}

func errorOf(t *testing.T, resp *mcp_golang.ToolResponse) string {
	t.Helper()
	var payload map[string]string
	decodePayload(t, resp, &payload)
	msg, ok := payload["error"]
	if !ok {
		t.Fatalf("Expected an error payload, got %q", payloadText(t, resp))
	}
	return msg
}

func TestAddServerAndList(t *testing.T) {
	h, _ := newHandlers(t, policy.Config{})

	resp, err := h.AddServer(AddServerArgs{Name: "x", Host: "h", Username: "u"})
	if err != nil {
		t.Fatalf("AddServer returned error: %v", err)
	}
	var created ServerPayload
	decodePayload(t, resp, &created)
	if created.Name != "x" || created.Port != 22 {
		t.Errorf("Unexpected created payload: %+v", created)
	}

	resp, err = h.ListServers(ListServersArgs{})
	if err != nil {
		t.Fatalf("ListServers returned error: %v", err)
	}
	var listed []ServerPayload
	decodePayload(t, resp, &listed)
	if len(listed) != 1 {
		t.Fatalf("Expected 1 server, got %d", len(listed))
	}
	got := listed[0]
	if got.Name != "x" || got.Host != "h" || got.Username != "u" || got.Port != 22 || got.IsDefault {
		t.Errorf("Round-trip mismatch: %+v", got)
	}
}

func TestAddServerValidation(t *testing.T) {
	h, _ := newHandlers(t, policy.Config{})

	resp, _ := h.AddServer(AddServerArgs{Name: "x"})
	if msg := errorOf(t, resp); !strings.Contains(msg, "required") {
		t.Errorf("Unexpected validation message: %q", msg)
	}
}

func TestAddServerDuplicate(t *testing.T) {
	h, st := newHandlers(t, policy.Config{})
	h.AddServer(AddServerArgs{Name: "x", Host: "first", Username: "u"})

	resp, _ := h.AddServer(AddServerArgs{Name: "x", Host: "second", Username: "u"})
	if msg := errorOf(t, resp); !strings.Contains(msg, "already exists") {
		t.Errorf("Unexpected duplicate message: %q", msg)
	}

	srv, _ := st.Get("x")
	if srv.Host != "first" {
		t.Errorf("Duplicate add modified the stored entry: %+v", srv)
	}
}

func TestListServersRedactsPassword(t *testing.T) {
	h, _ := newHandlers(t, policy.Config{})
	h.AddServer(AddServerArgs{Name: "x", Host: "h", Username: "u", Password: "s3cret"})

	resp, _ := h.ListServers(ListServersArgs{})
	if strings.Contains(payloadText(t, resp), "s3cret") {
		t.Error("list_servers leaked a password")
	}
}

func TestListServersKeyword(t *testing.T) {
	h, _ := newHandlers(t, policy.Config{})
	h.AddServer(AddServerArgs{Name: "web-1", Host: "10.0.0.1", Username: "u"})
	h.AddServer(AddServerArgs{Name: "db-1", Host: "10.0.0.2", Username: "u"})

	resp, _ := h.ListServers(ListServersArgs{Keyword: "db"})
	var listed []ServerPayload
	decodePayload(t, resp, &listed)
	if len(listed) != 1 || listed[0].Name != "db-1" {
		t.Errorf("Keyword filter failed: %+v", listed)
	}
}

func TestDeleteServer(t *testing.T) {
	h, _ := newHandlers(t, policy.Config{})
	h.AddServer(AddServerArgs{Name: "x", Host: "h", Username: "u"})

	resp, _ := h.DeleteServer(DeleteServerArgs{Name: "x"})
	var payload map[string]bool
	decodePayload(t, resp, &payload)
	if !payload["deleted"] {
		t.Errorf("Unexpected delete payload: %v", payload)
	}

	resp, _ = h.DeleteServer(DeleteServerArgs{Name: "x"})
	if msg := errorOf(t, resp); !strings.Contains(msg, "not found") {
		t.Errorf("Unexpected delete-missing message: %q", msg)
	}
}

func TestDefaultServerScenario(t *testing.T) {
	h, st := newHandlers(t, policy.Config{})
	h.AddServer(AddServerArgs{Name: "a", Host: "1.2.3.4", Username: "root", Password: "p"})

	resp, _ := h.SetDefault(SetDefaultArgs{Name: "a"})
	var payload map[string]string
	decodePayload(t, resp, &payload)
	if payload["default"] != "a" {
		t.Errorf("Unexpected set_default payload: %v", payload)
	}

	resp, _ = h.ListServers(ListServersArgs{})
	var listed []ServerPayload
	decodePayload(t, resp, &listed)
	if len(listed) != 1 || !listed[0].IsDefault {
		t.Errorf("Default server not annotated: %+v", listed)
	}

	// Deleting the default clears the pointer.
	h.DeleteServer(DeleteServerArgs{Name: "a"})
	if _, ok := st.GetDefault(); ok {
		t.Error("Default pointer survived deleting the default server")
	}
}

func TestSetDefaultUnknown(t *testing.T) {
	h, _ := newHandlers(t, policy.Config{})

	resp, _ := h.SetDefault(SetDefaultArgs{Name: "nope"})
	if msg := errorOf(t, resp); !strings.Contains(msg, "not found") {
		t.Errorf("Unexpected message: %q", msg)
	}
}

func TestConnectNoTarget(t *testing.T) {
	h, _ := newHandlers(t, policy.Config{})

	resp, err := h.Connect(ConnectArgs{})
	if err != nil {
		t.Fatalf("Connect handler returned a protocol error: %v", err)
	}
	if msg := errorOf(t, resp); !strings.Contains(msg, "no server") {
		t.Errorf("Unexpected no-target message: %q", msg)
	}
}

func TestConnectUnknownServer(t *testing.T) {
	h, _ := newHandlers(t, policy.Config{})

	resp, _ := h.Connect(ConnectArgs{ServerName: "ghost"})
	if msg := errorOf(t, resp); !strings.Contains(msg, "unknown server") {
		t.Errorf("Unexpected unknown-server message: %q", msg)
	}
}

func TestConnectHostDeniedByPolicy(t *testing.T) {
	var cfg policy.Config
	cfg.Hosts.Deny = []string{"10.0.0.1"}
	h, _ := newHandlers(t, cfg)
	h.AddServer(AddServerArgs{Name: "x", Host: "10.0.0.1", Username: "u", Password: "p"})

	resp, _ := h.Connect(ConnectArgs{ServerName: "x"})
	if msg := errorOf(t, resp); !strings.Contains(msg, "denied") {
		t.Errorf("Unexpected policy message: %q", msg)
	}
}

func TestExecuteCommandDeniedByPolicy(t *testing.T) {
	var cfg policy.Config
	cfg.Commands.Deny = []string{"rm"}
	h, _ := newHandlers(t, cfg)
	h.AddServer(AddServerArgs{Name: "x", Host: "10.0.0.1", Username: "u", Password: "p"})

	resp, err := h.Execute(ExecuteArgs{ServerName: "x", Command: "rm -rf /"})
	if err != nil {
		t.Fatalf("Execute handler returned a protocol error: %v", err)
	}
	if msg := errorOf(t, resp); !strings.Contains(msg, "denied") {
		t.Errorf("Unexpected policy message: %q", msg)
	}
}

func TestExecuteRejectsNegativeTimeout(t *testing.T) {
	h, _ := newHandlers(t, policy.Config{})
	h.AddServer(AddServerArgs{Name: "x", Host: "10.0.0.1", Username: "u", Password: "p"})

	// Only zero (unbounded) and positive values are meaningful; a negative
	// timeout must not silently disable the bound.
	timeout := -5
	resp, err := h.Execute(ExecuteArgs{ServerName: "x", Command: "true", Timeout: &timeout})
	if err != nil {
		t.Fatalf("Execute handler returned a protocol error: %v", err)
	}
	if msg := errorOf(t, resp); !strings.Contains(msg, "timeout") {
		t.Errorf("Unexpected negative-timeout message: %q", msg)
	}
}

func TestGetStatusEmpty(t *testing.T) {
	h, _ := newHandlers(t, policy.Config{})

	resp, _ := h.GetStatus(GetStatusArgs{})
	var payload StatusPayload
	decodePayload(t, resp, &payload)
	if payload.Total != 0 || len(payload.Connections) != 0 {
		t.Errorf("Expected empty status, got %+v", payload)
	}
}

func TestDisconnectUnknown(t *testing.T) {
	h, _ := newHandlers(t, policy.Config{})

	resp, _ := h.Disconnect(DisconnectArgs{ConnectionID: "nope"})
	var payload DisconnectPayload
	decodePayload(t, resp, &payload)
	if payload.Disconnected != 0 {
		t.Errorf("Expected 0 disconnected, got %d", payload.Disconnected)
	}
}
