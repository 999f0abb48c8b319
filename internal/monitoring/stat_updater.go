package monitoring

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/isdelr/ender-local/internal/metrics"
	"github.com/isdelr/ender-local/internal/services"
	"github.com/isdelr/ender-local/internal/system"
	"github.com/rs/zerolog/log"
)

// DefaultStatInterval is how often StatUpdater samples disk usage.
const DefaultStatInterval = time.Minute

// HostProbe reports host figures.
type HostProbe interface {
	Stats() (system.Stats, error)
}

// InstanceUsage is the on-disk footprint of one instance.
type InstanceUsage struct {
	ServerID  string `json:"serverId"`
	SizeBytes int64  `json:"sizeBytes"`
}

// StatsUpdate is broadcast after each sample.
type StatsUpdate struct {
	Host      system.Stats    `json:"host"`
	Instances []InstanceUsage `json:"instances"`
}

// StatUpdater periodically measures instance directories and host capacity,
// exports them as metrics and pushes them to connected clients.
type StatUpdater struct {
	serverSvc services.ServerServiceProvider
	eventSvc  services.EventServiceProvider
	host      HostProbe
	notifier  services.Notifier
	interval  time.Duration

	mu            sync.Mutex
	lastDiskAlert time.Time
}

// NewStatUpdater creates a new StatUpdater. notifier may be nil.
func NewStatUpdater(serverSvc services.ServerServiceProvider, eventSvc services.EventServiceProvider, host HostProbe, notifier services.Notifier, interval time.Duration) *StatUpdater {
	if interval <= 0 {
		interval = DefaultStatInterval
	}
	return &StatUpdater{
		serverSvc: serverSvc,
		eventSvc:  eventSvc,
		host:      host,
		notifier:  notifier,
		interval:  interval,
	}
}

// Run samples until ctx is cancelled.
func (su *StatUpdater) Run(ctx context.Context) {
	log.Info().Dur("interval", su.interval).Msg("Starting background stat updater...")
	ticker := time.NewTicker(su.interval)
	defer ticker.Stop()

	// Run once immediately on start
	su.Update()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping background stat updater.")
			return
		case <-ticker.C:
			su.Update()
		}
	}
}

// Update takes one sample and returns it.
func (su *StatUpdater) Update() StatsUpdate {
	var update StatsUpdate

	servers, err := su.serverSvc.GetAllServers()
	if err != nil {
		log.Error().Err(err).Msg("StatUpdater: Failed to query servers")
		return update
	}

	metrics.InstanceDiskBytes.Reset()
	update.Instances = make([]InstanceUsage, 0, len(servers))
	for _, server := range servers {
		size, err := directorySize(server.Path())
		if err != nil {
			log.Warn().Err(err).Str("server_id", server.ID).Str("path", server.Path()).Msg("StatUpdater: Could not calculate directory size")
			continue
		}
		metrics.InstanceDiskBytes.WithLabelValues(server.ID).Set(float64(size))
		update.Instances = append(update.Instances, InstanceUsage{ServerID: server.ID, SizeBytes: size})
	}

	if su.host != nil {
		stats, err := su.host.Stats()
		if err != nil {
			log.Warn().Err(err).Msg("StatUpdater: Could not read host stats")
		} else {
			update.Host = stats
			su.checkAndAlertForLowDisk(stats)
		}
	}

	if su.notifier != nil {
		su.notifier.Publish("stats_update", update)
	}
	return update
}

func (su *StatUpdater) checkAndAlertForLowDisk(stats system.Stats) {
	const highDiskThreshold = 90.0
	const alertCooldown = 15 * time.Minute

	if stats.DiskUsedPercent <= highDiskThreshold {
		return
	}

	su.mu.Lock()
	defer su.mu.Unlock()
	if time.Since(su.lastDiskAlert) < alertCooldown {
		return
	}
	msg := fmt.Sprintf("Disk holding %s is %.1f%% full.", stats.DiskPath, stats.DiskUsedPercent)
	if su.eventSvc != nil {
		if err := su.eventSvc.CreateEvent("system.alert.disk", "warn", msg, nil); err != nil {
			log.Warn().Err(err).Msg("StatUpdater: Failed to record disk alert")
		}
	}
	su.lastDiskAlert = time.Now()
}

// directorySize sums the sizes of regular files under path.
func directorySize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size += info.Size()
		}
		return nil
	})
	return size, err
}
