// Package di provides dependency injection for services.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/config"
	"github.com/aristath/techclock/internal/events"
	"github.com/aristath/techclock/internal/modules/activities"
	"github.com/aristath/techclock/internal/modules/alerts"
	"github.com/aristath/techclock/internal/modules/metrics"
	"github.com/aristath/techclock/internal/modules/serviceorders"
	"github.com/aristath/techclock/internal/modules/settings"
	"github.com/aristath/techclock/internal/modules/timeentries"
	"github.com/aristath/techclock/internal/modules/timetracking"
	"github.com/aristath/techclock/internal/modules/watchdog"
)

// InitializeServices creates the services in dependency order
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	cutoff, err := watchdog.ParseTimeOfDay(cfg.CutoffTime)
	if err != nil {
		return err
	}
	container.Cutoff = cutoff

	// Events
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// Settings override the environment once stored
	container.SettingsService = settings.NewService(container.SettingsRepo, cfg.SettingOverrides(), container.EventManager, log)
	if err := cfg.UpdateFromSettings(ctx, container.SettingsService); err != nil {
		return err
	}

	// Activity catalog. The taxonomy and the metrics cache both depend on the
	// activity axes, so they subscribe before a reseed is announced.
	container.Taxonomy = activities.NewTaxonomy(container.ActivityRepo)
	container.Taxonomy.Subscribe(container.EventBus)
	container.MetricsCache = metrics.NewCache(container.CacheDB.Conn(), log)
	container.MetricsCache.Subscribe(container.EventBus)
	if cfg.ActivityCatalog != "" {
		catalog, err := activities.LoadCatalogFile(cfg.ActivityCatalog)
		if err != nil {
			return err
		}
		if err := activities.Seed(ctx, container.ActivityRepo, catalog); err != nil {
			return fmt.Errorf("failed to seed activity catalog: %w", err)
		}
		container.EventManager.EmitTyped("activities", &events.CatalogSeededData{
			Source: cfg.ActivityCatalog,
			Count:  len(catalog),
		})
	}

	// Recording
	container.Synchronizer = serviceorders.NewSynchronizer(container.ServiceOrderRepo, container.Clock, log)
	container.Recorder = timeentries.NewRecorder(
		container.TimeTrackingDB.Conn(),
		container.TimeEntryRepo,
		container.SessionRepo,
		container.Taxonomy,
		container.ServiceOrderRepo,
		container.Synchronizer,
		container.Clock,
		container.Location,
		log,
	)

	// Metrics
	container.Aggregator = metrics.NewAggregator(container.TimeEntryRepo, container.Taxonomy, container.MetricsCache, log)

	container.Engine = timetracking.NewEngine(timetracking.Deps{
		Sessions:   container.SessionRepo,
		Entries:    container.TimeEntryRepo,
		Recorder:   container.Recorder,
		Taxonomy:   container.Taxonomy,
		Orders:     container.ServiceOrderRepo,
		Aggregator: container.Aggregator,
		Events:     container.EventManager,
		Clock:      container.Clock,
		Location:   container.Location,
	}, log)

	// Alerts
	var dispatcher alerts.Dispatcher = alerts.NewLogDispatcher(log)
	if cfg.AlertWebhookURL != "" {
		dispatcher = alerts.NewWebhookDispatcher(cfg.AlertWebhookURL, log)
	}
	container.AlertService = alerts.NewService(container.AlertRepo, dispatcher, cfg.AlertRecipients, log)
	container.EventBus.Subscribe(events.SettingsChanged, func(e events.Event) {
		data, ok := e.Data.(*events.SettingsChangedData)
		if ok && data.Key == settings.KeyAlertRecipients {
			container.AlertService.SetRecipients(settings.SplitRecipients(data.Value))
		}
	})

	container.Watchdog = watchdog.New(
		container.Engine,
		container.Engine,
		container.AlertService,
		container.EventManager,
		container.Clock,
		container.Location,
		log,
	)

	log.Info().
		Str("cutoff", cutoff.String()).
		Bool("webhook_alerts", cfg.AlertWebhookURL != "").
		Msg("Services initialized")
	return nil
}
