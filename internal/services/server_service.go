package services

import (
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/isdelr/ender-local/internal/instance"
	"github.com/isdelr/ender-local/internal/metrics"
	"github.com/isdelr/ender-local/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultGamePort is the first port tried when a request leaves the port unset.
const DefaultGamePort = 25565

var (
	ErrServerNotFound = errors.New("server not found")
	ErrInvalidInput   = errors.New("invalid input")
	// ErrServerBusy is returned for operations that need a stopped instance.
	ErrServerBusy = errors.New("server is not stopped")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Notifier pushes state changes to connected clients.
type Notifier interface {
	Publish(action string, payload interface{})
}

// CapacityProbe reports host limits used to validate allocations.
type CapacityProbe interface {
	TotalMemoryMB() (uint64, error)
}

// CreateServerRequest is the input for CreateServer. A zero Port picks the
// next free port from DefaultGamePort.
type CreateServerRequest struct {
	Name       string `json:"name" validate:"required,max=64"`
	ServerType string `json:"serverType" validate:"required"`
	Version    string `json:"version" validate:"required,max=32"`
	Port       uint16 `json:"port" validate:"omitempty,min=1024"`
	MemoryMB   uint32 `json:"memoryMB" validate:"required,min=512"`
}

// UpdateServerRequest carries the fields to change; nil fields are kept.
type UpdateServerRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	Version  *string `json:"version,omitempty" validate:"omitempty,min=1,max=32"`
	Port     *uint16 `json:"port,omitempty" validate:"omitempty,min=1024"`
	MemoryMB *uint32 `json:"memoryMB,omitempty" validate:"omitempty,min=512"`
}

// ServerServiceProvider defines the interface for server services.
type ServerServiceProvider interface {
	GetAllServers() ([]models.Server, error)
	GetServerByID(id string) (models.Server, error)
	CreateServer(req CreateServerRequest) (models.Server, error)
	UpdateServer(id string, req UpdateServerRequest) (models.Server, error)
	DeleteServer(id string) error
	GetProperties(id string) (map[string]string, error)
	UpdateProperties(id string, set map[string]string, remove []string) (map[string]string, error)
	GetOps(id string) ([]models.OpEntry, error)
	GetStatus(id string) (models.ServerStatus, error)
	SetStatus(id string, status models.ServerStatus) (models.Server, error)
	WithServerLock(id string, fn func(models.Server) error) error
}

// ServerService provides business logic for server management.
type ServerService struct {
	db           *sql.DB
	notifier     Notifier
	eventService EventServiceProvider
	capacity     CapacityProbe
	statuses     *StatusTracker
	locks        *keyedMutex
}

// NewServerService creates a new ServerService. notifier and capacity may be nil.
func NewServerService(db *sql.DB, notifier Notifier, eventService EventServiceProvider, capacity CapacityProbe, statuses *StatusTracker) *ServerService {
	if statuses == nil {
		statuses = NewStatusTracker()
	}
	return &ServerService{
		db:           db,
		notifier:     notifier,
		eventService: eventService,
		capacity:     capacity,
		statuses:     statuses,
		locks:        newKeyedMutex(),
	}
}

const selectServers = `SELECT id, name, server_type, version, port, memory_mb, jar_file, data_path FROM servers`

func scanServerConfig(scanner interface{ Scan(...interface{}) error }) (models.ServerConfig, error) {
	var (
		id, name, typeName, version, jarFile, dataPath string
		port                                           int64
		memoryMB                                       int64
	)
	if err := scanner.Scan(&id, &name, &typeName, &version, &port, &memoryMB, &jarFile, &dataPath); err != nil {
		return models.ServerConfig{}, err
	}
	serverType, err := models.ParseServerType(typeName)
	if err != nil {
		return models.ServerConfig{}, fmt.Errorf("server %s: %w", id, err)
	}
	return models.RestoreServerConfig(id, name, serverType, version, uint16(port), uint32(memoryMB), dataPath, jarFile), nil
}

// GetAllServers returns every registered instance with its current status.
func (s *ServerService) GetAllServers() ([]models.Server, error) {
	rows, err := s.db.Query(selectServers + " ORDER BY created_at ASC, name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	servers := []models.Server{}
	for rows.Next() {
		cfg, err := scanServerConfig(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, models.NewServer(cfg, s.statuses.Get(cfg.ID)))
	}
	return servers, rows.Err()
}

func (s *ServerService) getConfig(id string) (models.ServerConfig, error) {
	cfg, err := scanServerConfig(s.db.QueryRow(selectServers+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ServerConfig{}, fmt.Errorf("server with id %s: %w", id, ErrServerNotFound)
		}
		return models.ServerConfig{}, err
	}
	return cfg, nil
}

// GetServerByID retrieves a single server by its ID.
func (s *ServerService) GetServerByID(id string) (models.Server, error) {
	cfg, err := s.getConfig(id)
	if err != nil {
		return models.Server{}, err
	}
	return models.NewServer(cfg, s.statuses.Get(id)), nil
}

// CreateServer allocates a new instance record, provisions its directory with
// a seeded server.properties and registers it.
func (s *ServerService) CreateServer(req CreateServerRequest) (models.Server, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Version = strings.TrimSpace(req.Version)
	if err := validate.Struct(req); err != nil {
		return models.Server{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	serverType, err := models.ParseServerType(req.ServerType)
	if err != nil {
		return models.Server{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.checkMemory(req.MemoryMB); err != nil {
		return models.Server{}, err
	}

	port := req.Port
	if port == 0 {
		if port, err = s.findAvailablePort(DefaultGamePort); err != nil {
			return models.Server{}, err
		}
	} else if err := s.checkPortFree(port, ""); err != nil {
		return models.Server{}, err
	}

	cfg := models.NewServerConfig(req.Name, serverType, req.Version, port, req.MemoryMB)
	if err := s.provision(cfg); err != nil {
		os.RemoveAll(cfg.Path())
		return models.Server{}, err
	}

	_, err = s.db.Exec(`
	INSERT INTO servers(id, name, server_type, version, port, memory_mb, jar_file, data_path)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.Name, cfg.ServerType.DisplayName(), cfg.Version, cfg.Port, cfg.MemoryMB, cfg.JarFile, cfg.Path())
	if err != nil {
		os.RemoveAll(cfg.Path())
		return models.Server{}, fmt.Errorf("failed to write server to database: %w", err)
	}

	s.statuses.Set(cfg.ID, models.StatusStopped)
	server := models.NewServer(cfg, models.StatusStopped)

	s.recordEvent("server.create", "info", fmt.Sprintf("Server '%s' was created.", cfg.Name), &cfg.ID)
	s.publish("server_update", server)
	s.refreshMetrics()
	log.Info().Str("server_id", cfg.ID).Str("server_name", cfg.Name).Str("path", cfg.Path()).Msg("Successfully created server")
	return server, nil
}

// provision creates the instance directory and its first server.properties.
func (s *ServerService) provision(cfg models.ServerConfig) error {
	if err := os.MkdirAll(cfg.Path(), 0o755); err != nil {
		return fmt.Errorf("failed to create server data directory: %w", err)
	}
	props := instance.SeedDefaults()
	props.Set("server-port", strconv.Itoa(int(cfg.Port)))
	props.Set("motd", cfg.Name)
	err := props.Save(cfg.Path())
	metrics.PropertiesSaves.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("failed to seed server properties: %w", err)
	}
	return nil
}

// UpdateServer applies the non-nil fields of req. A port change is written
// to server.properties before the registry, and reverted if the registry
// update fails.
func (s *ServerService) UpdateServer(id string, req UpdateServerRequest) (models.Server, error) {
	req.Name = trimmedPtr(req.Name)
	req.Version = trimmedPtr(req.Version)
	if err := validate.Struct(req); err != nil {
		return models.Server{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	cfg, err := s.getConfig(id)
	if err != nil {
		return models.Server{}, err
	}
	oldPort := cfg.Port

	if req.Name != nil {
		cfg.Name = *req.Name
	}
	if req.Version != nil {
		cfg.Version = *req.Version
	}
	if req.MemoryMB != nil {
		if err := s.checkMemory(*req.MemoryMB); err != nil {
			return models.Server{}, err
		}
		cfg.MemoryMB = *req.MemoryMB
	}
	portChanged := req.Port != nil && *req.Port != cfg.Port
	if portChanged {
		if err := s.checkPortFree(*req.Port, id); err != nil {
			return models.Server{}, err
		}
		cfg.Port = *req.Port
		if err := s.setPropertiesPort(cfg, cfg.Port); err != nil {
			return models.Server{}, err
		}
	}

	_, err = s.db.Exec("UPDATE servers SET name = ?, version = ?, port = ?, memory_mb = ? WHERE id = ?",
		cfg.Name, cfg.Version, cfg.Port, cfg.MemoryMB, id)
	if err != nil {
		if portChanged {
			if rerr := s.setPropertiesPort(cfg, oldPort); rerr != nil {
				log.Error().Err(rerr).Str("server_id", id).Msg("Failed to revert server-port after registry update failed")
			}
		}
		return models.Server{}, fmt.Errorf("failed to update server: %w", err)
	}

	server := models.NewServer(cfg, s.statuses.Get(id))
	s.recordEvent("server.update", "info", fmt.Sprintf("Server '%s' was updated.", cfg.Name), &cfg.ID)
	s.publish("server_update", server)
	return server, nil
}

func (s *ServerService) setPropertiesPort(cfg models.ServerConfig, port uint16) error {
	return s.modifyProperties(cfg, func(p *instance.Properties) {
		p.Set("server-port", strconv.Itoa(int(port)))
	})
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

// DeleteServer removes a stopped instance. The registry row is deleted in a
// transaction that commits only once the directory is gone.
func (s *ServerService) DeleteServer(id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	cfg, err := s.getConfig(id)
	if err != nil {
		return fmt.Errorf("could not find server to delete: %w", err)
	}
	if status := s.statuses.Get(id); status != models.StatusStopped {
		return fmt.Errorf("cannot delete server '%s' while %s: %w", cfg.Name, status, ErrServerBusy)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM servers WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete server from DB: %w", err)
	}

	log.Info().Str("server_id", id).Str("data_path", cfg.Path()).Msg("Deleting server data")
	if err := os.RemoveAll(cfg.Path()); err != nil {
		return fmt.Errorf("failed to delete server data directory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit server deletion: %w", err)
	}

	s.statuses.Remove(id)
	s.locks.Forget(id)
	s.recordEvent("server.delete", "warn", fmt.Sprintf("Server '%s' was permanently deleted.", cfg.Name), nil)
	s.publish("server_deleted", map[string]string{"id": id})
	s.refreshMetrics()
	return nil
}

// GetProperties reads the instance's server.properties.
func (s *ServerService) GetProperties(id string) (map[string]string, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	cfg, err := s.getConfig(id)
	if err != nil {
		return nil, err
	}
	props, err := instance.LoadProperties(cfg.Path())
	if err != nil {
		return nil, err
	}
	return props.Map(), nil
}

// UpdateProperties merges set into server.properties, drops the keys in
// remove and saves. server-port is owned by the instance record and may only
// be "changed" to its current value.
func (s *ServerService) UpdateProperties(id string, set map[string]string, remove []string) (map[string]string, error) {
	for key, value := range set {
		if err := checkPropertyPair(key, value); err != nil {
			return nil, err
		}
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	cfg, err := s.getConfig(id)
	if err != nil {
		return nil, err
	}
	if v, ok := set["server-port"]; ok && v != strconv.Itoa(int(cfg.Port)) {
		return nil, fmt.Errorf("%w: server-port follows the server's port; update the server instead", ErrInvalidInput)
	}
	for _, key := range remove {
		if key == "server-port" {
			return nil, fmt.Errorf("%w: server-port cannot be removed", ErrInvalidInput)
		}
	}

	var result map[string]string
	err = s.modifyProperties(cfg, func(p *instance.Properties) {
		for key, value := range set {
			p.Set(key, value)
		}
		for _, key := range remove {
			p.Delete(key)
		}
		result = p.Map()
	})
	if err != nil {
		return nil, err
	}

	s.recordEvent("properties.update", "info", fmt.Sprintf("Properties of server '%s' were updated.", cfg.Name), &cfg.ID)
	s.publish("properties_update", map[string]interface{}{"id": id, "properties": result})
	return result, nil
}

// modifyProperties runs load, fn, save. The caller holds the instance lock.
func (s *ServerService) modifyProperties(cfg models.ServerConfig, fn func(*instance.Properties)) error {
	props, err := instance.LoadProperties(cfg.Path())
	if err != nil {
		return err
	}
	fn(props)
	err = props.Save(cfg.Path())
	metrics.PropertiesSaves.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		log.Error().Err(err).Str("server_id", cfg.ID).Msg("Failed to save server properties")
		return err
	}
	return nil
}

// checkPropertyPair rejects pairs that would not survive a save/load cycle.
func checkPropertyPair(key, value string) error {
	switch {
	case strings.TrimSpace(key) != key || key == "":
		return fmt.Errorf("%w: property key %q must be non-empty without surrounding spaces", ErrInvalidInput, key)
	case strings.ContainsAny(key, "=\r\n") || strings.HasPrefix(key, "#"):
		return fmt.Errorf("%w: property key %q contains a reserved character", ErrInvalidInput, key)
	case strings.ContainsAny(value, "\r\n"):
		return fmt.Errorf("%w: value of %q contains a line break", ErrInvalidInput, key)
	case strings.TrimSpace(value) != value:
		return fmt.Errorf("%w: value of %q has surrounding spaces", ErrInvalidInput, key)
	}
	return nil
}

// GetOps reads the instance's operator roster.
func (s *ServerService) GetOps(id string) ([]models.OpEntry, error) {
	cfg, err := s.getConfig(id)
	if err != nil {
		return nil, err
	}
	return instance.LoadOps(cfg.Path())
}

// WithServerLock runs fn while holding the instance lock of id, so fn never
// observes a half-applied properties update.
func (s *ServerService) WithServerLock(id string, fn func(models.Server) error) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	cfg, err := s.getConfig(id)
	if err != nil {
		return err
	}
	return fn(models.NewServer(cfg, s.statuses.Get(id)))
}

// GetStatus returns the lifecycle label of an instance.
func (s *ServerService) GetStatus(id string) (models.ServerStatus, error) {
	if _, err := s.getConfig(id); err != nil {
		return 0, err
	}
	return s.statuses.Get(id), nil
}

// SetStatus records a label reported by the process supervisor.
func (s *ServerService) SetStatus(id string, status models.ServerStatus) (models.Server, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	cfg, err := s.getConfig(id)
	if err != nil {
		return models.Server{}, err
	}
	prev := s.statuses.Set(id, status)
	server := models.NewServer(cfg, status)

	if prev != status {
		log.Info().Str("server_id", id).Str("from", prev.String()).Str("to", status.String()).Msg("Server status changed")
		s.publish("status_update", server)
		s.refreshMetrics()
	}
	return server, nil
}

func (s *ServerService) checkMemory(memoryMB uint32) error {
	if s.capacity == nil {
		return nil
	}
	total, err := s.capacity.TotalMemoryMB()
	if err != nil {
		log.Warn().Err(err).Msg("Could not read host memory; skipping allocation check")
		return nil
	}
	if uint64(memoryMB) > total {
		return fmt.Errorf("%w: %d MB requested but the host has %d MB", ErrInvalidInput, memoryMB, total)
	}
	return nil
}

// checkPortFree fails if another registered instance uses port.
func (s *ServerService) checkPortFree(port uint16, exceptID string) error {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM servers WHERE port = ? AND id != ?", port, exceptID).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: port %d is already used by another server", ErrInvalidInput, port)
	}
	return nil
}

// findAvailablePort returns the first port from startPort that no instance
// is registered on and that can currently be bound.
func (s *ServerService) findAvailablePort(startPort int) (uint16, error) {
	used := make(map[int]bool)
	rows, err := s.db.Query("SELECT port FROM servers")
	if err != nil {
		return 0, err
	}
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		used[p] = true
	}
	rows.Close()

	for port := startPort; port < 65535; port++ {
		if used[port] {
			continue
		}
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			ln.Close()
			return uint16(port), nil
		}
	}
	return 0, fmt.Errorf("no available ports found")
}

func (s *ServerService) recordEvent(eventType, level, message string, serverID *string) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.CreateEvent(eventType, level, message, serverID); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Failed to record event")
	}
}

func (s *ServerService) publish(action string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.Publish(action, payload)
	}
}

func (s *ServerService) refreshMetrics() {
	servers, err := s.GetAllServers()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to refresh server metrics")
		return
	}
	counts := make(map[models.ServerStatus]int)
	for _, srv := range servers {
		counts[srv.Status]++
	}
	for _, status := range []models.ServerStatus{models.StatusStopped, models.StatusStopping, models.StatusStarting, models.StatusRunning} {
		metrics.ServersTotal.WithLabelValues(status.String()).Set(float64(counts[status]))
	}
}
