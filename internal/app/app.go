// Package app wires configuration into a running receptionist.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"restaurant-receptionist/internal/accumulator"
	"restaurant-receptionist/internal/api"
	"restaurant-receptionist/internal/common/aws"
	"restaurant-receptionist/internal/common/camunda"
	"restaurant-receptionist/internal/common/config"
	"restaurant-receptionist/internal/common/database"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/facts"
	"restaurant-receptionist/internal/generation"
	"restaurant-receptionist/internal/nlu/cascade"
	"restaurant-receptionist/internal/nlu/classifier"
	"restaurant-receptionist/internal/nlu/fallback"
	"restaurant-receptionist/internal/nlu/rules"
	"restaurant-receptionist/internal/persistence"
	"restaurant-receptionist/internal/respond"
	"restaurant-receptionist/internal/retrieval"
	"restaurant-receptionist/internal/session"
	"restaurant-receptionist/internal/templates"
	"restaurant-receptionist/internal/workers/sendconfirmation"
)

// Dependencies are the external clients; nil means not configured.
type Dependencies struct {
	sql     *database.SQLClient
	redis   *database.RedisClient
	elastic *database.ElasticsearchClient
	zeebe   *camunda.Client
}

func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	if cfg.Database.Driver != "" {
		client, err := database.NewSQL(cfg.Database)
		if err != nil {
			return nil, err
		}
		deps.sql = client
		err = retryWithBackoff(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}, 5, 2*time.Second, log, "database connection")
		if err != nil {
			return nil, err
		}
		log.Info("database connected", zap.String("driver", client.Driver))
	}

	if needsRedis(cfg) {
		client := database.NewRedis(cfg.Database.Redis)
		deps.redis = client
		err := retryWithBackoff(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		}, 5, 2*time.Second, log, "redis connection")
		if err != nil {
			return nil, err
		}
		log.Info("redis connected", zap.String("address", cfg.Database.Redis.Address))
	}

	if cfg.Tiering.RetrievalBackend == "elasticsearch" {
		client, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		deps.elastic = client
		err = retryWithBackoff(func() error {
			return client.Ping(ctx)
		}, 5, 2*time.Second, log, "elasticsearch connection")
		if err != nil {
			return nil, err
		}
		log.Info("elasticsearch connected", zap.String("index", cfg.Database.Elasticsearch.Index))
	}

	if cfg.Camunda.Enabled {
		err := retryWithBackoff(func() error {
			client, err := camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
			if err != nil {
				return err
			}
			deps.zeebe = client
			return nil
		}, 5, 2*time.Second, log, "zeebe client")
		if err != nil {
			return nil, err
		}
		log.Info("zeebe client created", zap.String("broker", cfg.Camunda.BrokerAddress))
	}

	return deps, nil
}

// SQL returns the database client, or nil when persistence is off.
func (d *Dependencies) SQL() *database.SQLClient {
	return d.sql
}

func needsRedis(cfg *config.Config) bool {
	if cfg.Database.Redis.Address == "" {
		return false
	}
	return cfg.Tiering.CacheBackend == "redis" ||
		cfg.Session.SnapshotStore == "redis" ||
		cfg.Business.Source == "postgres"
}

func (d *Dependencies) ReadinessChecks() []api.Option {
	var opts []api.Option
	if d.sql != nil {
		opts = append(opts, api.WithReadinessCheck("database", d.sql.Ping))
	}
	if d.redis != nil {
		opts = append(opts, api.WithReadinessCheck("redis", d.redis.Ping))
	}
	if d.elastic != nil {
		opts = append(opts, api.WithReadinessCheck("elasticsearch", d.elastic.Ping))
	}
	if d.zeebe != nil {
		opts = append(opts, api.WithReadinessCheck("zeebe", d.zeebe.HealthCheck))
	}
	return opts
}

func (d *Dependencies) Close(log *zap.Logger) {
	if d.zeebe != nil {
		if err := d.zeebe.Close(); err != nil {
			log.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.sql != nil {
		_ = d.sql.Close()
	}
}

type Application struct {
	Facts     *facts.Store
	Cascade   *cascade.Cascade
	Responder *respond.Engine
	Sessions  *session.Store
	// Pipeline is nil when no database is configured.
	Pipeline *persistence.Pipeline
	// Notifier is nil unless notifications are enabled.
	Notifier *persistence.Notifier
}

type Option func(*options)

type options struct {
	generation generation.Client
}

// WithGenerationClient replaces the client built from apis.genai.
func WithGenerationClient(c generation.Client) Option {
	return func(o *options) { o.generation = c }
}

func Build(ctx context.Context, cfg *config.Config, deps *Dependencies, log logger.Logger, opts ...Option) (*Application, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	app := &Application{}

	loc, err := time.LoadLocation(cfg.Business.Timezone)
	if err != nil {
		return nil, fmt.Errorf("business.timezone: %w", err)
	}

	loader := factsLoader(cfg, deps, log)
	data, err := loader(ctx)
	if err != nil {
		return nil, fmt.Errorf("load business data: %w", err)
	}
	app.Facts = facts.NewStore(facts.NewSnapshot(*data), loader)
	snapshot := app.Facts.Snapshot
	businessName := func() string { return snapshot().BusinessName() }

	reg, err := templates.Load(cfg.Business.TemplatesPath, config.GetDuration(cfg.Business.SnapshotTTL), log)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	gen := o.generation
	if gen == nil {
		if gen, err = generation.New(ctx, cfg.APIs.GenAI, log); err != nil {
			return nil, fmt.Errorf("generation client: %w", err)
		}
	}

	app.Cascade = buildCascade(cfg, snapshot(), gen, log)

	committer, err := app.buildPersistence(ctx, cfg, deps, businessName, log)
	if err != nil {
		return nil, err
	}

	acc := accumulator.New(accumulator.Config{
		CommitTimeout:  config.GetDuration(cfg.Accumulator.CommitTimeout),
		PickupEstimate: cfg.Accumulator.PickupEstimate,
		Location:       loc,
	}, snapshot, committer, log)

	var retriever retrieval.Retriever
	if deps.elastic != nil {
		retriever = retrieval.NewElasticIndex(deps.elastic.Client, cfg.Database.Elasticsearch.Index, log)
	} else {
		retriever = retrieval.NewMemoryIndex(retrieval.Chunk(snapshot()))
	}

	var cache respond.Cache
	cacheTTL := config.GetDuration(cfg.Tiering.CacheTTL)
	switch cfg.Tiering.CacheBackend {
	case "redis":
		cache = respond.NewRedisCache(deps.redis.Client, cacheTTL, log)
	case "memory":
		cache = respond.NewMemoryCache(cfg.Tiering.CacheSize, cacheTTL)
	}

	rag := respond.NewRAG(respond.RAGConfig{
		TopK:        cfg.Tiering.RAGTopK,
		Timeout:     config.GetDuration(cfg.Tiering.GenerationTimeout),
		MaxTokens:   cfg.Tiering.MaxTokens,
		Temperature: cfg.Tiering.Temperature,
	}, retriever, gen, cache, businessName, log)

	app.Responder = respond.NewEngine(snapshot, reg, acc, rag, log)

	var sessionOpts []session.Option
	if cfg.Session.SnapshotStore == "redis" {
		sessionOpts = append(sessionOpts, session.WithSnapshotter(
			session.NewRedisSnapshotter(deps.redis.Client, config.GetDuration(cfg.Session.IdleTimeout)),
		))
	}
	app.Sessions = session.NewStore(session.Config{
		IdleTimeout: config.GetDuration(cfg.Session.IdleTimeout),
		HistorySize: cfg.Session.HistorySize,
	}, log, sessionOpts...)

	return app, nil
}

func factsLoader(cfg *config.Config, deps *Dependencies, log logger.Logger) func(context.Context) (*facts.BusinessData, error) {
	if cfg.Business.Source != "postgres" {
		return func(context.Context) (*facts.BusinessData, error) {
			return facts.LoadFile(cfg.Business.DataPath)
		}
	}

	load := func(ctx context.Context) (*facts.BusinessData, error) {
		return facts.LoadPostgres(ctx, deps.sql)
	}
	if deps.redis == nil {
		return load
	}
	cache := facts.NewRedisCache(deps.redis.Client, config.GetDuration(cfg.Business.SnapshotTTL))
	return func(ctx context.Context) (*facts.BusinessData, error) {
		data, hit, err := cache.Load(ctx, load)
		if err == nil {
			log.Debug("business data loaded", map[string]interface{}{"cacheHit": hit})
		}
		return data, err
	}
}

// buildCascade orders the stages classifier, rules, generative fallback. A
// missing classifier model is not an error.
func buildCascade(cfg *config.Config, snap *facts.Snapshot, gen generation.Client, log logger.Logger) *cascade.Cascade {
	var stages []cascade.Stage

	model, err := classifier.NewLoader(cfg.Cascade.RegistryPath).LoadLatest(cfg.Cascade.ModelName)
	switch {
	case err == nil:
		stages = append(stages, &cascade.ClassifierStage{Model: model, Threshold: cfg.Cascade.ClassifierThreshold})
		log.Info("intent classifier loaded", map[string]interface{}{
			"model":   cfg.Cascade.ModelName,
			"version": model.Version,
		})
	case errors.Is(err, classifier.ErrModelAbsent):
		log.Info("no intent classifier registered, using rules first", map[string]interface{}{
			"registry": cfg.Cascade.RegistryPath,
		})
	default:
		log.Warn("intent classifier failed to load", map[string]interface{}{"error": err.Error()})
	}

	stages = append(stages, &cascade.RuleStage{Matcher: rules.NewDefault(snap.Catalog())})

	if cfg.Cascade.FallbackEnabled {
		stages = append(stages, &cascade.FallbackStage{
			Classifier: fallback.New(fallback.Config{
				Timeout:      config.GetDuration(cfg.Cascade.FallbackTimeout),
				Confidence:   cfg.Cascade.FallbackConfidence,
				HistoryTurns: 2,
			}, gen, log),
		})
	}
	return cascade.New(log, stages...)
}

// buildPersistence returns nil when no database is configured; confirmed
// drafts are then acknowledged without a confirmation id.
func (app *Application) buildPersistence(ctx context.Context, cfg *config.Config, deps *Dependencies, businessName func() string, log logger.Logger) (accumulator.Committer, error) {
	if deps.sql == nil {
		log.Warn("database.driver not set, orders and reservations are not persisted", nil)
		return nil, nil
	}

	store := persistence.NewSQLStore(deps.sql.DB, cfg.Accumulator.ReservationsPerSlot, log)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	var opts []persistence.Option
	if deps.zeebe != nil {
		opts = append(opts, persistence.WithProcessStarter(persistence.NewProcessStarter(
			deps.zeebe, cfg.Camunda.OrderProcessID, cfg.Camunda.ReservationProcessID, log,
		)))
	}

	if cfg.Notifications.Enabled {
		var (
			email persistence.EmailSender
			sms   persistence.SMSSender
		)
		region := cfg.Integrations.AWS.Region
		if cfg.Notifications.OwnerEmail != "" && cfg.Integrations.AWS.SES.FromEmail != "" {
			ses, err := aws.NewSESClient(ctx, region)
			if err != nil {
				return nil, fmt.Errorf("ses client: %w", err)
			}
			email = ses
		}
		if cfg.Notifications.SMSEnabled && cfg.Integrations.AWS.SNS.Enabled {
			sns, err := aws.NewSNSClient(ctx, region)
			if err != nil {
				return nil, fmt.Errorf("sns client: %w", err)
			}
			sms = sns
		}
		app.Notifier = persistence.NewNotifier(persistence.NotifierConfig{
			FromEmail:    cfg.Integrations.AWS.SES.FromEmail,
			OwnerEmail:   cfg.Notifications.OwnerEmail,
			BusinessName: businessName,
		}, email, sms, log)
		// the send-confirmation task notifies instead
		if !notifiesViaProcess(cfg, deps) {
			opts = append(opts, persistence.WithNotifier(app.Notifier))
		}
	}

	app.Pipeline = persistence.NewPipeline(store, log, opts...)
	return app.Pipeline, nil
}

func notifiesViaProcess(cfg *config.Config, deps *Dependencies) bool {
	return deps.zeebe != nil && cfg.Camunda.ConfirmationWorker.Enabled
}

// StartWorkers opens the Zeebe job workers this process serves. The returned
// func closes them.
func (app *Application) StartWorkers(cfg *config.Config, deps *Dependencies, log *zap.Logger) func() {
	wcfg := cfg.Camunda.ConfirmationWorker
	if !notifiesViaProcess(cfg, deps) || app.Notifier == nil {
		log.Info("worker disabled", zap.String("taskType", sendconfirmation.TaskType))
		return func() {}
	}

	handler := sendconfirmation.NewHandler(sendconfirmation.Config{
		Timeout:    config.GetDuration(wcfg.Timeout),
		MaxRetries: wcfg.MaxRetries,
	}, app.Notifier, logger.NewZapAdapter(log))
	w := deps.zeebe.OpenJobWorker(sendconfirmation.TaskType, handler.Handle,
		wcfg.MaxJobsActive, config.GetDuration(wcfg.Timeout))

	log.Info("worker started",
		zap.String("taskType", sendconfirmation.TaskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)
	return func() {
		w.Close()
		w.AwaitClose()
	}
}

// RefreshFacts reloads business data every interval. A failed reload keeps
// the current snapshot.
func (app *Application) RefreshFacts(ctx context.Context, interval time.Duration, log logger.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := app.Facts.Reload(ctx); err != nil {
				log.Warn("business data reload failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
