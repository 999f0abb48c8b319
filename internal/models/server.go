package models

import (
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// DefaultJarFile is the launch artifact every new instance starts with.
const DefaultJarFile = "server.jar"

// DefaultServersRoot is used until SetServersRoot is called.
const DefaultServersRoot = "./servers"

var (
	serversRootMu sync.RWMutex
	serversRoot   = DefaultServersRoot
)

// SetServersRoot configures the base directory under which every instance
// directory lives. It is called once at startup.
func SetServersRoot(dir string) {
	serversRootMu.Lock()
	defer serversRootMu.Unlock()
	serversRoot = dir
}

// ServersRoot returns the configured base directory.
func ServersRoot() string {
	serversRootMu.RLock()
	defer serversRootMu.RUnlock()
	return serversRoot
}

// ServerConfig represents one managed server instance.
type ServerConfig struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ServerType ServerType `json:"serverType"`
	Version    string     `json:"version"`
	Port       uint16     `json:"port"`
	MemoryMB   uint32     `json:"memoryMB"`
	JarFile    string     `json:"jarFile"`

	// path is fixed at creation; callers address instances by ID.
	path string
}

// NewServerConfig allocates a fresh ID and derives the instance directory
// from the servers root. Nothing is written to disk.
func NewServerConfig(name string, serverType ServerType, version string, port uint16, memoryMB uint32) ServerConfig {
	id := uuid.New().String()
	return ServerConfig{
		ID:         id,
		Name:       name,
		ServerType: serverType,
		Version:    version,
		Port:       port,
		MemoryMB:   memoryMB,
		JarFile:    DefaultJarFile,
		path:       filepath.Join(ServersRoot(), id),
	}
}

// RestoreServerConfig rebuilds a record read back from the registry, keeping
// the path it was created with.
func RestoreServerConfig(id, name string, serverType ServerType, version string, port uint16, memoryMB uint32, path, jarFile string) ServerConfig {
	if jarFile == "" {
		jarFile = DefaultJarFile
	}
	return ServerConfig{
		ID:         id,
		Name:       name,
		ServerType: serverType,
		Version:    version,
		Port:       port,
		MemoryMB:   memoryMB,
		JarFile:    jarFile,
		path:       path,
	}
}

// Path returns the instance directory.
func (c ServerConfig) Path() string {
	return c.path
}

// Server is a ServerConfig together with its current lifecycle label, as
// returned by the API.
type Server struct {
	ServerConfig
	Status      ServerStatus `json:"status"`
	Description string       `json:"statusDescription"`
}

// NewServer pairs a record with its status.
func NewServer(cfg ServerConfig, status ServerStatus) Server {
	return Server{ServerConfig: cfg, Status: status, Description: status.Describe()}
}
