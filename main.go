package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/storage/redis/v3"
	"github.com/google/uuid"
	"github.com/onsell/backoffice/internal/audit"
	"github.com/onsell/backoffice/internal/common"
	"github.com/onsell/backoffice/internal/config"
	"github.com/onsell/backoffice/internal/handlers/web"
	"github.com/onsell/backoffice/internal/impersonate"
	"github.com/onsell/backoffice/internal/logging"
	"github.com/onsell/backoffice/internal/logs"
	"github.com/onsell/backoffice/internal/metrics"
	"github.com/onsell/backoffice/internal/middlewares"
	"github.com/onsell/backoffice/internal/middlewares/csrf"
	"github.com/onsell/backoffice/internal/middlewares/sessions"
	"github.com/onsell/backoffice/internal/render"
	"github.com/onsell/backoffice/internal/store"
	"github.com/onsell/backoffice/internal/tenants"
	"github.com/onsell/backoffice/internal/users"
	"github.com/onsell/backoffice/model"
	"github.com/onsell/backoffice/params"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
	daysFlag = &cli.IntFlag{
		Name:     "days",
		Usage:    "Delete entries older than this many days",
		Required: true,
	}
	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Export format: csv, json or csv-legacy",
		Value: string(logs.FormatCSV),
	}
	outFlag = &cli.StringFlag{
		Name:  "out",
		Usage: "Write the export to this file instead of stdout",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "onsell-backoffice - OnSell back-office log viewer and tenant impersonation"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
		{
			Name:   "migrate",
			Usage:  "Create or update the database schema",
			Action: migrate,
		},
		{
			Name:  "logs",
			Usage: "Maintain the log viewer sources",
			Subcommands: []*cli.Command{
				{
					Name:   "clear",
					Usage:  "Delete audit records and log files older than --days",
					Flags:  []cli.Flag{daysFlag},
					Action: clearLogs,
				},
				{
					Name:  "export",
					Usage: "Export merged log entries",
					Flags: []cli.Flag{
						formatFlag,
						outFlag,
						&cli.StringFlag{Name: "type"},
						&cli.StringFlag{Name: "level"},
						&cli.StringFlag{Name: "from", Usage: "YYYY-MM-DD"},
						&cli.StringFlag{Name: "to", Usage: "YYYY-MM-DD"},
						&cli.StringFlag{Name: "search"},
					},
					Action: exportLogs,
				},
			},
		},
		{
			Name:  "users",
			Usage: "Manage back-office accounts",
			Subcommands: []*cli.Command{
				{
					Name:  "create",
					Usage: "Create a back-office account",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "name", Required: true},
						&cli.StringFlag{Name: "email", Required: true},
						&cli.StringFlag{Name: "password", Required: true},
						&cli.StringSliceFlag{Name: "role", Usage: "admin, agency.owner or client.user"},
						&cli.UintFlag{Name: "agency-id"},
						&cli.UintFlag{Name: "client-id"},
					},
					Action: createUser,
				},
				{
					Name:  "password",
					Usage: "Set the password of a back-office account",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "email", Required: true},
						&cli.StringFlag{Name: "password", Required: true},
					},
					Action: setPassword,
				},
			},
		},
	}
	app.Action = run
}

func loadConfig(ctx *cli.Context) (*config.Config, io.Closer, error) {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return nil, nil, err
	}
	if ctx.IsSet(debugFlag.Name) {
		cfg.Debug = true
		cfg.Logs.ExposeErrors = true
	}
	closer, err := logging.Setup(cfg)
	if err != nil {
		slog.Error("Could not open application log.", "error", err)
		return nil, nil, err
	}
	return cfg, closer, nil
}

func openDialector(driver, dsn string) gorm.Dialector {
	if driver == "postgres" {
		return postgres.Open(dsn)
	}
	return mysql.Open(dsn)
}

func mustInitDatabase(dbConfig config.DatabaseConfig) *gorm.DB {
	db, err := gorm.Open(openDialector(dbConfig.Driver, dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: dbConfig.TablePrefix,
		},
		TranslateError: true,
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if len(dbConfig.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(dbConfig.Replicas))
		for _, dsn := range dbConfig.Replicas {
			replicas = append(replicas, openDialector(dbConfig.Driver, dsn))
		}
		// the log viewer is read heavy, audit listing goes to the replicas
		err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}, &model.Audit{}))
		if err != nil {
			slog.Error("Failed to register read replicas", "error", err)
			os.Exit(1)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to get database handle", "error", err)
		os.Exit(1)
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	if dbConfig.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(dbConfig.ConnMaxIdleTime)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)
	}
	return db
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

// mustInitStorage returns the backend shared by sessions, role snapshots and
// the login limiter, plus the redis client to probe for readiness.
func mustInitStorage(cfg *config.Config) (fiber.Storage, goredis.UniversalClient) {
	if cfg.Session.Backend == "memory" {
		slog.Warn("Using in-memory session storage, sessions are lost on restart")
		return memory.New(), nil
	}
	redisStorage := mustInitRedisStorage(cfg.Redis)
	return redisStorage, redisStorage.Conn()
}

func mustInitAggregator(cfg *config.Config, db *gorm.DB) (*logs.Aggregator, *logs.FileSource) {
	fileSource, err := logs.NewFileSource(cfg.Logs.Dir,
		logs.WithLocation(time.Local),
		logs.WithCache(cfg.Logs.CacheSize),
	)
	if err != nil {
		slog.Error("Failed to open log directory", "dir", cfg.Logs.Dir, "error", err)
		os.Exit(1)
	}
	return logs.NewAggregator(logs.NewAuditRepository(db), fileSource), fileSource
}

func newUserService(db *gorm.DB) *users.UserService {
	return users.NewUserService(users.NewUserRepository(db), users.NewRoleRepository(db))
}

func migrate(ctx *cli.Context) error {
	cfg, closer, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	db := mustInitDatabase(cfg.Database)
	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		return err
	}
	slog.Info("Database migrated")
	return nil
}

func clearLogs(ctx *cli.Context) error {
	days := ctx.Int(daysFlag.Name)
	if err := logs.ValidateRetentionDays(days); err != nil {
		return err
	}
	cfg, closer, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	db := mustInitDatabase(cfg.Database)
	aggregator, _ := mustInitAggregator(cfg, db)
	audit.Initialize(audit.NewAuditEventRepository(db))

	result, err := aggregator.ClearOlderThan(ctx.Context, days)
	if err != nil {
		return err
	}
	if err := audit.RecordLogsCleared(ctx.Context, audit.LogsClearedRecord{
		RequestInfo:   audit.RequestInfo{URL: "cli:logs clear"},
		Days:          days,
		AuditsDeleted: result.AuditsDeleted,
		FilesDeleted:  result.FilesDeleted,
	}); err != nil {
		slog.Error("Failed to record logs clear", "error", err)
	}
	fmt.Printf("db_records_deleted=%d files_deleted=%d\n", result.AuditsDeleted, result.FilesDeleted)
	return nil
}

func exportLogs(ctx *cli.Context) error {
	format, err := logs.ParseFormat(ctx.String(formatFlag.Name))
	if err != nil {
		return err
	}
	query, err := logs.ParseQuery(logs.Params{
		Type:     ctx.String("type"),
		Level:    ctx.String("level"),
		DateFrom: ctx.String("from"),
		DateTo:   ctx.String("to"),
		Search:   ctx.String("search"),
	})
	if err != nil {
		return err
	}
	cfg, closer, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	db := mustInitDatabase(cfg.Database)
	aggregator, _ := mustInitAggregator(cfg, db)

	var out io.Writer = os.Stdout
	if path := ctx.String(outFlag.Name); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return aggregator.Export(ctx.Context, query.Filter, format, out)
}

func createUser(ctx *cli.Context) error {
	cfg, closer, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	opts := users.CreateUserOptions{
		Name:     ctx.String("name"),
		Email:    ctx.String("email"),
		Password: ctx.String("password"),
		Roles:    ctx.StringSlice("role"),
	}
	if ctx.IsSet("agency-id") {
		id := ctx.Uint("agency-id")
		opts.AgencyID = &id
	}
	if ctx.IsSet("client-id") {
		id := ctx.Uint("client-id")
		opts.ClientID = &id
	}

	user, err := newUserService(mustInitDatabase(cfg.Database)).CreateUser(ctx.Context, opts)
	if err != nil {
		return err
	}
	fmt.Printf("created user %d <%s>\n", user.ID, user.Email)
	return nil
}

func setPassword(ctx *cli.Context) error {
	cfg, closer, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	userService := newUserService(mustInitDatabase(cfg.Database))
	user, err := userService.GetUserByEmail(ctx.Context, ctx.String("email"))
	if err != nil {
		return err
	}
	if err := userService.UpdatePassword(ctx.Context, user.ID, ctx.String("password")); err != nil {
		return err
	}
	fmt.Printf("password updated for user %d\n", user.ID)
	return nil
}

func setupWebRoutes(
	router fiber.Router,
	storage fiber.Storage,
	sessionConfig sessions.Config,
	userService *users.UserService,
	impersonateService *impersonate.Service,
	aggregator *logs.Aggregator,
	exportsPerMinute int) {

	// handlers
	var (
		loginHandler       = web.NewLoginHandler(userService, impersonateService)
		logsHandler        = web.NewLogsHandler(aggregator, exportsPerMinute)
		impersonateHandler = web.NewImpersonateHandler(impersonateService)
		dashboardHandler   = web.NewDashboardHandler(impersonateService)
	)

	loginLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: time.Minute,
		Storage:    storage,
	})

	// routes
	router.Use(sessions.New(sessionConfig))
	router.Use(middlewares.LoadActingContext(userService))
	router.Use(csrf.New(csrf.Config{}))
	router.Get("/", dashboardHandler.GetHome)
	router.Get("/login", loginHandler.GetLogin)
	router.Post("/login", loginLimiter, loginHandler.PostLogin)
	router.Post("/logout", middlewares.RequireLogin(), loginHandler.PostLogout)

	admin := router.Group("/admin", middlewares.RequireLogin(), middlewares.RequireAnyRole(model.RoleAdmin))
	admin.Get("/dashboard", dashboardHandler.GetAdminDashboard)
	admin.Get("/logs", logsHandler.GetLogs)
	admin.Get("/logs/data", logsHandler.GetLogsData)
	admin.Get("/logs/export", logsHandler.GetLogsExport)
	admin.Post("/logs/clear", logsHandler.PostLogsClear)

	imp := router.Group("/impersonate", middlewares.RequireLogin())
	imp.Get("/targets", impersonateHandler.GetTargets)
	imp.Post("/agency/:id", impersonateHandler.PostStartAgency)
	imp.Post("/client/:id", impersonateHandler.PostStartClient)
	imp.Post("/stop", impersonateHandler.PostStop)

	router.Get("/agency/dashboard", middlewares.RequireLogin(), middlewares.RequireAnyRole(model.RoleAgencyOwner), dashboardHandler.GetAgencyDashboard)
	router.Get("/client/dashboard", middlewares.RequireLogin(), middlewares.RequireAnyRole(model.RoleClientUser), dashboardHandler.GetClientDashboard)
}

func run(ctx *cli.Context) error {
	config, closer, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	globalVars := fiber.Map{
		"siteName": config.SiteName,
	}
	if err := render.Initialize(globalVars, config.TemplateDir); err != nil {
		slog.Error("Failed to load templates", "error", err)
		return err
	}

	db := mustInitDatabase(config.Database)
	storage, rdb := mustInitStorage(config)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(registry)
	audit.Initialize(audit.NewAuditEventRepository(db))

	// repositories and services
	var (
		userService        = newUserService(db)
		tenantRepo         = tenants.NewTenantRepository(db)
		snapshotStore      = impersonate.NewSnapshotStore(store.NewFiberStorage(storage))
		impersonateService = impersonate.NewService(userService, tenantRepo, snapshotStore)
	)
	aggregator, fileSource := mustInitAggregator(config, db)

	bgCtx, term := context.WithCancel(ctx.Context)
	defer term()
	if config.Logs.Watch {
		watcher, err := logs.NewWatcher(fileSource)
		if err != nil {
			slog.Error("Failed to watch log directory", "dir", config.Logs.Dir, "error", err)
			return err
		}
		defer watcher.Close()
		go watcher.Run(bgCtx)
	}

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.NewErrorHandler(config.Logs.ExposeErrors),
	})

	router.Use(recover.New())
	router.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	router.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AllowOrigins, ", "),
		AllowHeaders:     "Origin, Content-Type, Accept, X-CSRF-Token",
		AllowCredentials: len(config.AllowOrigins) > 0 && config.AllowOrigins[0] != "*",
	}))

	setupWebRoutes(
		router,
		storage,
		sessions.Config{
			Storage:        storage,
			SessionMaxAge:  config.Session.SessionMaxAge,
			CookieSecure:   config.Session.CookieSecure,
			CookieHttpOnly: config.Session.CookieHttpOnly,
			CookieName:     config.Session.CookieName,
		},
		userService,
		impersonateService,
		aggregator,
		config.Logs.ExportRatePerMinute,
	)

	done := make(chan struct{})
	go common.StartHealthCheckServer(bgCtx, done, common.NewHealthCheckHandler(rdb, db, registry))
	defer func() {
		term()
		<-done
	}()
	slog.Info("Starting OnSell back-office", "version", params.VersionWithCommit(gitCommit, gitDate), "addr", config.ListenAddr)
	return router.Listen(config.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
