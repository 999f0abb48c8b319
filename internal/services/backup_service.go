package services

import (
	"archive/zip"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-local/internal/metrics"
	"github.com/isdelr/ender-local/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrBackupNotFound is returned when a backup id is unknown.
var ErrBackupNotFound = errors.New("backup not found")

// Backup triggers, used as the "trigger" metric label.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// BackupServiceProvider defines the interface for backup services.
type BackupServiceProvider interface {
	CreateBackup(serverID, name string) (models.Backup, error)
	BackupAll(trigger string) (int, error)
	GetBackupsForServer(serverID string) ([]models.Backup, error)
	GetBackupByID(backupID string) (models.Backup, error)
	DeleteBackup(backupID string) error
	RestoreBackup(backupID string) error
}

// BackupService provides business logic for backup management.
type BackupService struct {
	db            *sql.DB
	serverService ServerServiceProvider
	eventService  EventServiceProvider
	backupPath    string
}

// NewBackupService creates a new BackupService.
func NewBackupService(db *sql.DB, serverService ServerServiceProvider, eventService EventServiceProvider, backupPath string) *BackupService {
	if err := os.MkdirAll(backupPath, 0o755); err != nil {
		log.Error().Err(err).Str("path", backupPath).Msg("Failed to create base backup directory")
	}
	return &BackupService{
		db:            db,
		serverService: serverService,
		eventService:  eventService,
		backupPath:    backupPath,
	}
}

// CreateBackup archives the instance directory of serverID into a zip file.
func (s *BackupService) CreateBackup(serverID, name string) (models.Backup, error) {
	return s.createBackup(serverID, name, TriggerManual)
}

func (s *BackupService) createBackup(serverID, name, trigger string) (backup models.Backup, err error) {
	timer := metrics.NewTimer()
	defer func() {
		metrics.BackupsCreated.WithLabelValues(trigger, metrics.Result(err)).Inc()
		if err == nil {
			timer.ObserveDuration(metrics.BackupDuration)
		}
	}()

	var serverName string
	err = s.serverService.WithServerLock(serverID, func(server models.Server) error {
		serverName = server.Name
		now := time.Now().UTC()
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("%s %s", server.Name, now.Format("2006-01-02 15:04:05"))
		}
		backup = models.Backup{
			ID:        uuid.New().String(),
			ServerID:  serverID,
			Name:      name,
			CreatedAt: now,
		}
		backup.Path = filepath.Join(s.backupPath, fmt.Sprintf("%s_%s_%s.zip", serverID, now.Format("20060102150405"), backup.ID[:8]))

		size, err := zipDir(server.Path(), backup.Path)
		if err != nil {
			os.Remove(backup.Path)
			return fmt.Errorf("failed to zip server data: %w", err)
		}
		backup.Size = size
		return nil
	})
	if err != nil {
		return models.Backup{}, err
	}

	_, err = s.db.Exec("INSERT INTO backups (id, server_id, name, path, size, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		backup.ID, backup.ServerID, backup.Name, backup.Path, backup.Size, backup.CreatedAt)
	if err != nil {
		os.Remove(backup.Path)
		return models.Backup{}, err
	}

	log.Info().Str("server_id", serverID).Str("backup_id", backup.ID).Int64("size", backup.Size).Str("trigger", trigger).Msg("Backup created")
	s.recordEvent("backup.create", "info", fmt.Sprintf("Backup '%s' created for server '%s'.", backup.Name, serverName), &serverID)
	return backup, nil
}

// zipDir writes every file under dir into a new zip archive at dest and
// returns the archive size.
func zipDir(dir, dest string) (int64, error) {
	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("could not create backup file: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			_, err = zw.Create(rel + "/")
			return err
		}
		w, err := zw.Create(rel)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}

	fi, err := out.Stat()
	if err != nil {
		return 0, fmt.Errorf("could not get backup file info: %w", err)
	}
	return fi.Size(), nil
}

// BackupAll archives every registered instance and returns how many
// succeeded. Failures are logged and joined into the returned error.
func (s *BackupService) BackupAll(trigger string) (int, error) {
	servers, err := s.serverService.GetAllServers()
	if err != nil {
		return 0, err
	}

	var errs []error
	done := 0
	for _, server := range servers {
		if _, err := s.createBackup(server.ID, "", trigger); err != nil {
			log.Error().Err(err).Str("server_id", server.ID).Msg("Backup failed")
			errs = append(errs, fmt.Errorf("server %s: %w", server.ID, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// GetBackupsForServer retrieves all backups for a given server, newest first.
func (s *BackupService) GetBackupsForServer(serverID string) ([]models.Backup, error) {
	if _, err := s.serverService.GetServerByID(serverID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query("SELECT id, server_id, name, path, size, created_at FROM backups WHERE server_id = ? ORDER BY created_at DESC, rowid DESC", serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	backups := []models.Backup{}
	for rows.Next() {
		var backup models.Backup
		if err := rows.Scan(&backup.ID, &backup.ServerID, &backup.Name, &backup.Path, &backup.Size, &backup.CreatedAt); err != nil {
			return nil, err
		}
		backups = append(backups, backup)
	}
	return backups, rows.Err()
}

// GetBackupByID retrieves a single backup by its ID.
func (s *BackupService) GetBackupByID(backupID string) (models.Backup, error) {
	var backup models.Backup
	row := s.db.QueryRow("SELECT id, server_id, name, path, size, created_at FROM backups WHERE id = ?", backupID)
	err := row.Scan(&backup.ID, &backup.ServerID, &backup.Name, &backup.Path, &backup.Size, &backup.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Backup{}, fmt.Errorf("backup with id %s: %w", backupID, ErrBackupNotFound)
		}
		return models.Backup{}, err
	}
	return backup, nil
}

// DeleteBackup deletes a backup from the filesystem and database.
func (s *BackupService) DeleteBackup(backupID string) error {
	backup, err := s.GetBackupByID(backupID)
	if err != nil {
		return err
	}

	if err := os.Remove(backup.Path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("backup_id", backupID).Str("path", backup.Path).Msg("Could not delete backup file")
	}

	if _, err := s.db.Exec("DELETE FROM backups WHERE id = ?", backupID); err != nil {
		return err
	}
	s.recordEvent("backup.delete", "warn", fmt.Sprintf("Backup '%s' was deleted.", backup.Name), &backup.ServerID)
	return nil
}

// RestoreBackup replaces the instance directory contents with the archive.
// The instance must be stopped. The archive is extracted next to the
// instance directory and swapped in only once every entry is written.
func (s *BackupService) RestoreBackup(backupID string) error {
	backup, err := s.GetBackupByID(backupID)
	if err != nil {
		return err
	}

	return s.serverService.WithServerLock(backup.ServerID, func(server models.Server) error {
		if server.Status != models.StatusStopped {
			return fmt.Errorf("cannot restore server '%s' while %s: %w", server.Name, server.Status, ErrServerBusy)
		}

		zr, err := zip.OpenReader(backup.Path)
		if err != nil {
			return fmt.Errorf("failed to open backup archive: %w", err)
		}
		defer zr.Close()

		for _, f := range zr.File {
			if !validEntryName(f.Name) {
				return fmt.Errorf("%w: invalid file path in zip: %s", ErrInvalidInput, f.Name)
			}
		}

		dataPath := server.Path()
		staging, err := os.MkdirTemp(filepath.Dir(dataPath), ".restore-*")
		if err != nil {
			return fmt.Errorf("failed to create restore directory: %w", err)
		}
		if err := os.Chmod(staging, 0o755); err != nil {
			os.RemoveAll(staging)
			return err
		}
		for _, f := range zr.File {
			if err := extractFile(f, staging); err != nil {
				os.RemoveAll(staging)
				return err
			}
		}

		if err := swapDir(staging, dataPath); err != nil {
			os.RemoveAll(staging)
			return err
		}

		log.Info().Str("server_id", server.ID).Str("backup_id", backup.ID).Msg("Backup restored")
		s.recordEvent("backup.restore", "warn", fmt.Sprintf("Server '%s' restored from backup '%s'.", server.Name, backup.Name), &backup.ServerID)
		return nil
	})
}

func validEntryName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") || filepath.IsAbs(name) {
		return false
	}
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

// swapDir replaces dst with src, putting dst back if the second rename fails.
func swapDir(src, dst string) error {
	old := dst + ".old-" + filepath.Base(src)
	if err := os.Rename(dst, old); err != nil {
		return fmt.Errorf("failed to move server data aside: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		if rerr := os.Rename(old, dst); rerr != nil {
			log.Error().Err(rerr).Str("path", dst).Msg("Failed to put server data back after restore")
		}
		return fmt.Errorf("failed to move restored data into place: %w", err)
	}
	if err := os.RemoveAll(old); err != nil {
		log.Warn().Err(err).Str("path", old).Msg("Failed to remove previous server data")
	}
	return nil
}

func extractFile(f *zip.File, dest string) error {
	fpath := filepath.Join(dest, filepath.FromSlash(f.Name))
	// zip slip
	if !strings.HasPrefix(fpath, filepath.Clean(dest)+string(os.PathSeparator)) {
		return fmt.Errorf("invalid file path in zip: %s", f.Name)
	}
	if f.FileInfo().IsDir() {
		return os.MkdirAll(fpath, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = io.Copy(out, rc)
	return err
}

func (s *BackupService) recordEvent(eventType, level, message string, serverID *string) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.CreateEvent(eventType, level, message, serverID); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Failed to record event")
	}
}
