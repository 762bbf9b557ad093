package builtin

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"fixpoint/internal/agent/ports"
)

const defaultStartupTimeout = 30 * time.Second

// ServerManager tracks long-lived processes started by the model, keyed by
// the port they listen on, so they can be stopped and are never leaked past
// the task.
type ServerManager struct {
	mu      sync.Mutex
	servers map[int]*managedServer
}

type managedServer struct {
	port    int
	command string
	pid     int
	pgid    int
	logPath string
}

// NewServerManager returns an empty manager shared by the server tools.
func NewServerManager() *ServerManager {
	return &ServerManager{servers: make(map[int]*managedServer)}
}

func (m *ServerManager) start(port int, command, workingDir, logPath string) (*managedServer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create server log: %w", err)
	}

	cmd := exec.Command("bash", "-c", command)
	cmd.Dir = workingDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("start server: %w", err)
	}
	_ = logFile.Close()

	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		pgid = cmd.Process.Pid
	}

	server := &managedServer{
		port:    port,
		command: command,
		pid:     cmd.Process.Pid,
		pgid:    pgid,
		logPath: logPath,
	}
	m.servers[port] = server

	// Reap the process when it exits on its own.
	go func() {
		_ = cmd.Wait()
		m.mu.Lock()
		if current, ok := m.servers[port]; ok && current.pid == server.pid {
			delete(m.servers, port)
		}
		m.mu.Unlock()
	}()

	return server, nil
}

func (m *ServerManager) stop(port int) (*managedServer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	server, ok := m.servers[port]
	if !ok {
		return nil, fmt.Errorf("no managed server on port %d", port)
	}
	delete(m.servers, port)

	// Terminate the whole process group, escalating after a grace period.
	_ = syscall.Kill(-server.pgid, syscall.SIGTERM)
	go func(pgid int) {
		time.Sleep(5 * time.Second)
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}(server.pgid)

	return server, nil
}

// releasePort stops a managed server on the port if there is one, then kills
// any remaining listener so a restart does not fail on a stale process.
func (m *ServerManager) releasePort(ctx context.Context, port int) {
	if _, err := m.stop(port); err == nil {
		time.Sleep(200 * time.Millisecond)
	}
	kill := exec.CommandContext(ctx, "bash", "-c",
		fmt.Sprintf("lsof -ti tcp:%d | xargs -r kill 2>/dev/null", port))
	_ = kill.Run()
}

// StopAll terminates every managed server. Called on task teardown.
func (m *ServerManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for port, server := range m.servers {
		_ = syscall.Kill(-server.pgid, syscall.SIGKILL)
		delete(m.servers, port)
	}
}

type startServer struct {
	workspace *Workspace
	manager   *ServerManager
}

// NewStartServer returns the start_server tool.
func NewStartServer(workspace *Workspace, manager *ServerManager) ports.ToolExecutor {
	return &startServer{workspace: workspace, manager: manager}
}

func (t *startServer) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	command, ok := stringArg(call.Arguments, "command")
	if !ok {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("missing 'command'")}, nil
	}
	port, ok := intArg(call.Arguments, "port")
	if !ok || port <= 0 {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("missing 'port'")}, nil
	}

	workingDir := t.workspace.Root()
	if dir, ok := stringArg(call.Arguments, "working_dir"); ok {
		resolved, err := t.workspace.Resolve(dir)
		if err != nil {
			return &ports.ToolResult{CallID: call.ID, Error: err}, nil
		}
		workingDir = resolved
	}

	timeout := defaultStartupTimeout
	if seconds, ok := intArg(call.Arguments, "startup_timeout"); ok && seconds > 0 {
		timeout = time.Duration(seconds) * time.Second
	}

	t.manager.releasePort(ctx, port)

	logPath := filepath.Join(os.TempDir(), fmt.Sprintf("fixpoint-server-%d.log", port))
	server, err := t.manager.start(port, command, workingDir, logPath)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	content := fmt.Sprintf("Started server on port %d (pid %d), logs at %s", port, server.pid, logPath)
	if healthPath, ok := stringArg(call.Arguments, "health_path"); ok {
		if waitForHealth(ctx, port, healthPath, timeout) {
			content += fmt.Sprintf("; %s responded", healthPath)
		} else {
			content += fmt.Sprintf("; %s did not respond within %v, check the log", healthPath, timeout)
		}
	} else if waitForPort(ctx, port, timeout) {
		content += fmt.Sprintf("; listening on port %d", port)
	} else {
		content += fmt.Sprintf("; port %d did not open within %v, check the log", port, timeout)
	}

	return &ports.ToolResult{
		CallID:  call.ID,
		Content: content,
		Metadata: map[string]any{
			"command": command,
			"port":    port,
			"pid":     server.pid,
			"log":     logPath,
		},
	}, nil
}

func waitForPort(ctx context.Context, port int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	address := fmt.Sprintf("127.0.0.1:%d", port)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		conn, err := net.DialTimeout("tcp", address, time.Second)
		if err == nil {
			_ = conn.Close()
			return true
		}
		time.Sleep(500 * time.Millisecond)
	}
	return false
}

func waitForHealth(ctx context.Context, port int, healthPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	url := fmt.Sprintf("http://127.0.0.1:%d/%s", port, strings.TrimPrefix(healthPath, "/"))
	client := &http.Client{Timeout: time.Second}
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 400 {
				return true
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return false
}

func (t *startServer) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "start_server",
		Description: "Start a long-lived server process in the background, replacing whatever is on the port. Use stop_server to terminate it.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"command":         {Type: "string", Description: "Command that starts the server"},
				"port":            {Type: "integer", Description: "Port the server listens on; any existing listener is killed first"},
				"health_path":     {Type: "string", Description: "Path polled until it responds, e.g. /health"},
				"startup_timeout": {Type: "integer", Description: "Seconds to wait for readiness (default 30)"},
				"working_dir":     {Type: "string", Description: "Directory to run in, relative to the workspace root"},
			},
			Required: []string{"command", "port"},
		},
	}
}

func (t *startServer) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "start_server", Version: "1.0.0", Category: "execution",
		Mutating: true, Dangerous: true,
	}
}

type stopServer struct {
	manager *ServerManager
}

// NewStopServer returns the stop_server tool.
func NewStopServer(manager *ServerManager) ports.ToolExecutor {
	return &stopServer{manager: manager}
}

func (t *stopServer) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	port, ok := intArg(call.Arguments, "port")
	if !ok || port <= 0 {
		return &ports.ToolResult{CallID: call.ID, Error: fmt.Errorf("missing 'port'")}, nil
	}

	server, err := t.manager.stop(port)
	if err != nil {
		return &ports.ToolResult{CallID: call.ID, Error: err}, nil
	}

	return &ports.ToolResult{
		CallID:  call.ID,
		Content: fmt.Sprintf("Stopped server on port %d (pid %d)", port, server.pid),
		Metadata: map[string]any{
			"port": port,
			"pid":  server.pid,
		},
	}, nil
}

func (t *stopServer) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "stop_server",
		Description: "Stop a server previously started with start_server",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"port": {Type: "integer", Description: "Port the server was started on"},
			},
			Required: []string{"port"},
		},
	}
}

func (t *stopServer) Metadata() ports.ToolMetadata {
	return ports.ToolMetadata{
		Name: "stop_server", Version: "1.0.0", Category: "execution", Mutating: true,
	}
}
