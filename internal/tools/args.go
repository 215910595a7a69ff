package tools

// ConnectArgs defines the arguments for establishing a connection to a
// configured server.
type ConnectArgs struct {
	ServerName string `json:"server_name" jsonschema:"description=Name of the configured server to connect to. Uses the default server when omitted."`
}

// DisconnectArgs defines the arguments for terminating connections.
type DisconnectArgs struct {
	ConnectionID string `json:"connection_id" jsonschema:"description=Identifier of the connection to close. All connections are closed when omitted."`
}

// ExecuteArgs defines the arguments for running a remote command.
type ExecuteArgs struct {
	ServerName string `json:"server_name" jsonschema:"description=Name of the configured server to run the command on,required"`
	Command    string `json:"command" jsonschema:"description=The command to execute,required"`
	Timeout    *int   `json:"timeout" jsonschema:"description=Timeout in seconds. 0 disables the timeout,default=30"`
}

// GetStatusArgs defines the arguments for the status snapshot.
type GetStatusArgs struct{}

// ListServersArgs defines the arguments for listing configured servers.
type ListServersArgs struct {
	Keyword           string `json:"keyword" jsonschema:"description=Filter servers by substring match on name/host/description"`
	IncludeSystemInfo bool   `json:"include_system_info" jsonschema:"description=Annotate servers that have a live connection with remote system information"`
}

// AddServerArgs defines the arguments for registering a server.
type AddServerArgs struct {
	Name         string `json:"name" jsonschema:"description=Unique name for the server,required"`
	Host         string `json:"host" jsonschema:"description=Hostname or IP address,required"`
	Username     string `json:"username" jsonschema:"description=Login username,required"`
	Port         int    `json:"port" jsonschema:"description=SSH port,default=22"`
	Password     string `json:"password" jsonschema:"description=Password for authentication. Ignored when key_path is set."`
	KeyPath      string `json:"key_path" jsonschema:"description=Path to the private key file. Takes precedence over password."`
	Description  string `json:"description" jsonschema:"description=Free-form description"`
	ProxyCommand string `json:"proxy_command" jsonschema:"description=Proxy command. Accepted but connections are made directly."`
}

// DeleteServerArgs defines the arguments for removing a server.
type DeleteServerArgs struct {
	Name string `json:"name" jsonschema:"description=Name of the server to delete,required"`
}

// SetDefaultArgs defines the arguments for choosing the default server.
type SetDefaultArgs struct {
	Name string `json:"name" jsonschema:"description=Name of the server to use as default,required"`
}
