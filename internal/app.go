package internal

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"property-listings-puller/internal/adapters/confirmer"
	"property-listings-puller/internal/adapters/csvtable"
	"property-listings-puller/internal/adapters/errorlog"
	logger_adapter "property-listings-puller/internal/adapters/logger"
	"property-listings-puller/internal/adapters/pagefetcher"
	postgres_adapter "property-listings-puller/internal/adapters/postgres"
	rabbitmq_adapter "property-listings-puller/internal/adapters/rabbitmq"
	redis_adapter "property-listings-puller/internal/adapters/redis"
	"property-listings-puller/internal/adapters/sites"
	"property-listings-puller/internal/configs"
	"property-listings-puller/internal/contextkeys"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	usecases_port "property-listings-puller/internal/core/port/usecases"
	"property-listings-puller/internal/core/usecase"
	"property-listings-puller/internal/scheduler"
	fluentlogger "property-listings-puller/pkg/fluent_logger"
	"property-listings-puller/pkg/postgres"
	"property-listings-puller/pkg/rabbitmq/rabbitmq_common"
	"property-listings-puller/pkg/rabbitmq/rabbitmq_producer"
	redisclient "property-listings-puller/pkg/redis"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
)

// App – структура приложения
type App struct {
	config        *configs.AppConfig
	dbPool        *pgxpool.Pool
	redisClient   *goredis.Client
	connManager   *rabbitmq_common.ConnectionManager
	eventProducer *rabbitmq_producer.Publisher
	fluentClient  *fluent.Fluent
	logger        port.LoggerPort

	pullListings usecases_port.PullListingsPort
}

// NewApp собирает зависимости запуска. in/out - терминал для подтверждений.
func NewApp(appConfig *configs.AppConfig, in io.Reader, out io.Writer) (app *App, err error) {
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	ctx := context.Background()
	a := &App{config: appConfig}
	// при ошибке сборки освобождаем то, что уже успели открыть
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// --- 1. ЛОГГЕРЫ ---
	var activeLoggers []port.LoggerPort
	activeLoggers = append(activeLoggers, logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Writer:   os.Stderr,
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		IsJSON:   appConfig.StdoutLogger.JSON,
		UseColor: appConfig.StdoutLogger.Color,
	}))

	if appConfig.FluentBit.Enabled {
		a.fluentClient, err = fluentlogger.NewClient(fluentlogger.Config{
			Host:      appConfig.FluentBit.Host,
			Port:      appConfig.FluentBit.Port,
			TagPrefix: appConfig.AppName,
			Async:     true,
		})
		if err != nil {
			log.Printf("WARNING: Failed to initialize Fluent Bit logger, continuing without it: %v", err)
		} else {
			fluentAdapter, ferr := logger_adapter.NewFluentLoggerAdapter(a.fluentClient, parseLogLevel(appConfig.FluentBit.Level))
			if ferr != nil {
				return nil, fmt.Errorf("failed to create fluent logger adapter: %w", ferr)
			}
			activeLoggers = append(activeLoggers, fluentAdapter)
		}
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}
	baseLogger := multiLogger.WithFields(port.Fields{
		"service_name": appConfig.AppName,
		"site":         appConfig.Run.Site,
	})
	a.logger = baseLogger.WithFields(port.Fields{"component": "app"})
	a.logger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": a.fluentClient != nil,
	})

	// --- 2. САЙТ И КОЛОНКИ ---
	allSites, err := configs.LoadSites(appConfig.SitesConfig)
	if err != nil {
		return nil, err
	}
	settings, ok := allSites[appConfig.Run.Site]
	if !ok {
		return nil, fmt.Errorf("site %q is not defined, available: %s", appConfig.Run.Site, strings.Join(configs.SiteNames(allSites), ", "))
	}
	settings, err = selectCategories(settings, appConfig.Run.Categories)
	if err != nil {
		return nil, err
	}

	site, err := sites.New(settings.Name, baseLogger)
	if err != nil {
		return nil, err
	}
	layouts := buildLayouts(settings, site)
	paths := resolvePaths(settings.Name, appConfig.Run)
	opts := buildRunOptions(appConfig.Run, paths)
	a.logger.Info("Run layout computed", port.Fields{
		"columns":     len(layouts.raw.Columns),
		"destination": paths.output,
		"clean":       settings.Clean,
		"categories":  len(settings.CrawlCategories()),
	})

	// --- 3. ИСХОДЯЩИЕ АДАПТЕРЫ ---
	writer := csvtable.NewCSVTableAdapter(paths.output)
	errorLog := errorlog.NewFileErrorLogAdapter(paths.errorLog)
	confirm := newConfirmer(appConfig.Run.AllowExistingOutput, in, out)

	fetcher, err := pagefetcher.NewCollyFetcherAdapter(pagefetcher.Config{
		UserAgent:      appConfig.Fetcher.UserAgent,
		RequestTimeout: appConfig.Fetcher.RequestTimeout,
		Delay:          appConfig.Fetcher.Delay,
		MaxRedirects:   appConfig.Fetcher.MaxRedirects,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize page fetcher: %w", err)
	}

	if appConfig.CheckpointBackend == configs.CheckpointPostgres || appConfig.MirrorToPostgres {
		a.dbPool, err = postgres.NewClient(ctx, postgres.Config{DatabaseURL: appConfig.Database.URL})
		if err != nil {
			a.logger.Error("Failed to connect to PostgreSQL", err, nil)
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		a.logger.Info("Successfully connected to PostgreSQL pool!", nil)
	}

	var checkpoints port.CheckpointStorePort
	switch appConfig.CheckpointBackend {
	case configs.CheckpointPostgres:
		checkpoints, err = postgres_adapter.NewPostgresCheckpointRepository(ctx, a.dbPool)
	case configs.CheckpointRedis:
		a.redisClient, err = redisclient.NewClient(ctx, appConfig.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.logger.Info("Successfully connected to Redis!", nil)
		checkpoints, err = redis_adapter.NewRedisCheckpointStore(a.redisClient, appConfig.Redis.CheckpointTTL)
	default:
		checkpoints = csvtable.NewTableCheckpointStore(writer, layouts.raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize checkpoint store: %w", err)
	}

	var sinks []port.PageSinkPort
	var reporters []port.RunReporterPort
	if appConfig.MirrorToPostgres {
		mirror, err := postgres_adapter.NewListingMirrorAdapter(ctx, a.dbPool)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize listing mirror: %w", err)
		}
		sinks = append(sinks, mirror)
		a.logger.Info("PostgreSQL listing mirror enabled.", nil)
	}
	if appConfig.RabbitMQ.URL != "" {
		events, err := a.initEvents(baseLogger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, events)
		reporters = append(reporters, events)
	}
	a.logger.Info("All outgoing adapters initialized.", nil)

	// --- 4. USE CASES ---
	resolver, err := usecase.NewURLResolver(settings.RootURL)
	if err != nil {
		return nil, err
	}
	crawlListings := usecase.NewCrawlListingsUseCase(
		site, settings, opts, fetcher, resolver,
		usecase.NewSchemaReconciler(layouts.raw),
		writer, errorLog, checkpoints, sinks...,
	)

	var cleanTable usecases_port.CleanTablePort
	if settings.Clean == domain.CleanAtEnd {
		cleanTable = usecase.NewCleanTableUseCase(
			site, layouts.raw, layouts.cleaned,
			writer, csvtable.NewCSVTableAdapter(paths.cleanedOutput), confirm,
		)
	}

	a.pullListings = usecase.NewPullListingsUseCase(
		site, settings, opts, layouts.raw,
		writer, confirm, checkpoints, crawlListings, cleanTable, reporters...,
	)
	a.logger.Info("All use cases initialized.", nil)

	return a, nil
}

// initEvents подключает публикацию событий обхода в RabbitMQ
func (a *App) initEvents(baseLogger port.LoggerPort) (*rabbitmq_adapter.CrawlEventsAdapter, error) {
	connManagerBridge := rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_conn_manager"}))
	rabbitCfg := rabbitmq_common.Config{URL: a.config.RabbitMQ.URL}

	var err error
	a.connManager, err = rabbitmq_common.NewConnectionManager(rabbitCfg, connManagerBridge)
	if err != nil {
		a.logger.Error("Failed to create connection manager", err, nil)
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}
	a.logger.Info("RabbitMQ Connection Manager initialized.", nil)

	a.eventProducer, err = rabbitmq_producer.NewPublisher(rabbitmq_producer.PublisherConfig{
		Config:                   rabbitCfg,
		ExchangeName:             a.config.RabbitMQ.Exchange,
		ExchangeType:             "topic",
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
		Logger:                   rabbitmq_adapter.NewPkgLoggerBridge(baseLogger.WithFields(port.Fields{"component": "rabbitmq_producer"})),
	}, a.connManager)
	if err != nil {
		a.logger.Error("Failed to create event producer", err, port.Fields{"exchange": a.config.RabbitMQ.Exchange})
		return nil, fmt.Errorf("failed to create event producer: %w", err)
	}
	a.logger.Info("RabbitMQ Event Producer initialized.", nil)

	return rabbitmq_adapter.NewCrawlEventsAdapter(a.eventProducer)
}

// Run выполняет один запуск или, если задано расписание, повторяет запуски до сигнала.
// Возвращает ошибку, из-за которой запуск был прерван.
func (a *App) Run() error {
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = contextkeys.ContextWithLogger(ctx, a.logger)

	if spec := a.config.Run.Schedule; spec != "" {
		sched, err := scheduler.New(spec, a.runOnce, a.logger.WithFields(port.Fields{"component": "scheduler"}))
		if err != nil {
			return err
		}
		return sched.Run(ctx)
	}

	a.logger.Info("Application is starting...", nil)
	return a.runOnce(ctx)
}

func (a *App) runOnce(ctx context.Context) error {
	runID := uuid.New()
	report, err := a.pullListings.Execute(ctx, runID)
	if report != nil {
		for _, c := range report.Categories {
			a.logger.Info("Category summary", port.Fields{
				"run_id":           runID.String(),
				"category":         c.Category,
				"pages_written":    c.PagesWritten,
				"listings_written": c.ListingsWritten,
				"listings_skipped": c.ListingsSkipped,
				"off_site_skipped": c.OffSiteSkipped,
				"detail_failures":  c.DetailFailures,
				"stop_reason":      c.StopReason,
			})
		}
	}
	return err
}

// Close освобождает внешние соединения. Можно вызывать повторно.
func (a *App) Close() {
	if a.eventProducer != nil {
		if err := a.eventProducer.Close(); err != nil && a.logger != nil {
			a.logger.Error("Error closing event producer", err, nil)
		}
		a.eventProducer = nil
	}
	if a.connManager != nil {
		if err := a.connManager.Close(); err != nil && a.logger != nil {
			a.logger.Error("Error closing RabbitMQ connection manager", err, nil)
		}
		a.connManager = nil
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
		a.redisClient = nil
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
		if a.logger != nil {
			a.logger.Info("PostgreSQL pool closed.", nil)
		}
	}
	if a.fluentClient != nil {
		if err := a.fluentClient.Close(); err != nil {
			log.Printf("App: Error closing fluent client: %v\n", err)
		}
		a.fluentClient = nil
	}
}

// newConfirmer: заранее данное разрешение, вопрос в терминале или отказ,
// если спросить некого
func newConfirmer(allow bool, in io.Reader, out io.Writer) port.ConfirmerPort {
	if allow {
		return confirmer.StaticConfirmer{Allow: true}
	}
	if in == nil {
		return confirmer.StaticConfirmer{Allow: false}
	}
	if f, ok := in.(*os.File); ok {
		if info, err := f.Stat(); err != nil || info.Mode()&os.ModeCharDevice == 0 {
			return confirmer.StaticConfirmer{Allow: false}
		}
	}
	return confirmer.NewPromptConfirmer(in, out)
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: Unknown log level '%s'. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
