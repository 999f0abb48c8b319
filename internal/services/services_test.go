package services

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/isdelr/ender-local/internal/database"
	"github.com/isdelr/ender-local/internal/models"
	"github.com/stretchr/testify/require"
)

type published struct {
	action  string
	payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *recordingNotifier) Publish(action string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{action, payload})
}

func (n *recordingNotifier) actions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.action)
	}
	return out
}

type fixedCapacity struct {
	totalMB uint64
	err     error
}

func (c fixedCapacity) TotalMemoryMB() (uint64, error) { return c.totalMB, c.err }

type testEnv struct {
	db       *sql.DB
	root     string
	notifier *recordingNotifier
	events   *EventService
	servers  *ServerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	root := filepath.Join(dir, "servers")
	prev := models.ServersRoot()
	models.SetServersRoot(root)
	t.Cleanup(func() { models.SetServersRoot(prev) })

	env := &testEnv{
		db:       db,
		root:     root,
		notifier: &recordingNotifier{},
		events:   NewEventService(db),
	}
	env.servers = NewServerService(db, env.notifier, env.events, fixedCapacity{totalMB: 16384}, NewStatusTracker())
	return env
}

func (e *testEnv) create(t *testing.T, name string, port uint16) models.Server {
	t.Helper()
	server, err := e.servers.CreateServer(CreateServerRequest{
		Name:       name,
		ServerType: "PaperMC",
		Version:    "1.20.4",
		Port:       port,
		MemoryMB:   2048,
	})
	require.NoError(t, err)
	return server
}
