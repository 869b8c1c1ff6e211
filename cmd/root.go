package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bizlinkhq/wa-engine/core/config"
	"github.com/bizlinkhq/wa-engine/core/database"
	domainApp "github.com/bizlinkhq/wa-engine/domains/app"
	domainCampaign "github.com/bizlinkhq/wa-engine/domains/campaign"
	domainSend "github.com/bizlinkhq/wa-engine/domains/send"
	domainSettings "github.com/bizlinkhq/wa-engine/domains/settings"
	"github.com/bizlinkhq/wa-engine/infrastructure/chatstorage"
	"github.com/bizlinkhq/wa-engine/infrastructure/contactcache"
	"github.com/bizlinkhq/wa-engine/infrastructure/valkey"
	"github.com/bizlinkhq/wa-engine/infrastructure/whatsapp"
	"github.com/bizlinkhq/wa-engine/pkg/utils"
	"github.com/bizlinkhq/wa-engine/session"
	"github.com/bizlinkhq/wa-engine/ui/websocket"
	"github.com/bizlinkhq/wa-engine/usecase"
	"github.com/bizlinkhq/wa-engine/webhook"
)

var (
	// Session engine
	sessionManager *session.Manager
	eventRouter    *session.EventRouter
	valkeyClient   *valkey.Client

	// Usecase
	appUsecase      domainApp.IAppUsecase
	sendUsecase     domainSend.ISendUsecase
	campaignUsecase domainCampaign.ICampaignUsecase
	settingsUsecase domainSettings.ISettingsUsecase
)

var rootCmd = &cobra.Command{
	Short: "Multi-tenant WhatsApp session engine",
	Long:  `Runs messaging sessions for many tenants over one process: pairing, reconnects, inbound routing, sending, campaigns and webhooks, exposed over an HTTP API.`,
}

func init() {
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

var (
	flagPort      string
	flagDebug     bool
	flagBasicAuth []string
	flagBasePath  string
)

func initFlags() {
	rootCmd.PersistentFlags().StringVarP(
		&flagPort,
		"port", "p",
		"",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagDebug,
		"debug", "d",
		false,
		"display debug logs with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringSliceVarP(
		&flagBasicAuth,
		"basic-auth", "b",
		nil,
		"basic auth credential | -b=yourUsername:yourPassword",
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagBasePath,
		"base-path", "",
		"",
		`base path for subpath deployment --base-path <string> | example: --base-path="/engine"`,
	)
}

// initEnvConfig builds the global configuration from the environment, then
// lets viper-bound values and command line flags override it.
func initEnvConfig() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("[APP] failed to load configuration: %v", err)
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if v := viper.GetString("app_port"); v != "" {
		cfg.App.Port = v
	}
	if viper.IsSet("app_debug") {
		cfg.App.Debug = viper.GetBool("app_debug")
	}
	if v := viper.GetString("app_basic_auth"); v != "" {
		cfg.App.BasicAuth = strings.Split(v, ",")
	}

	if flagPort != "" {
		cfg.App.Port = flagPort
	}
	if flagDebug {
		cfg.App.Debug = true
	}
	if len(flagBasicAuth) > 0 {
		cfg.App.BasicAuth = flagBasicAuth
	}
	if flagBasePath != "" {
		cfg.App.BasePath = flagBasePath
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

func initApp() {
	cfg := config.Global
	ctx := context.Background()

	for _, dir := range []string{cfg.Paths.Storages, cfg.Paths.Statics} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logrus.Errorf("[APP] failed to create folder %s: %v", dir, err)
		}
	}

	db, err := database.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[APP] failed to open database: %v", err)
	}
	repo := chatstorage.NewGormRepository(db)
	if err := repo.Init(ctx); err != nil {
		logrus.Fatalf("[APP] failed to migrate chat storage: %v", err)
	}

	if cfg.Database.ValkeyEnabled {
		valkeyClient, err = valkey.NewClient(valkey.Config{
			Address:        cfg.Database.ValkeyAddress,
			Password:       cfg.Database.ValkeyPassword,
			DB:             cfg.Database.ValkeyDB,
			KeyPrefix:      cfg.Database.ValkeyKeyPrefix,
			ConnectTimeout: valkey.DefaultConnectTimeout,
		})
		if err != nil {
			logrus.Fatalf("[APP] failed to connect to valkey: %v", err)
		}
		websocket.SetValkeyClient(valkeyClient, cfg.App.ServerID)
	}

	publisher := websocket.NewPublisher()
	registry := session.NewRegistry()
	factory := whatsapp.NewFactory(cfg)
	sessionManager = session.NewManager(registry, factory, cfg, publisher)

	notifier := webhook.NewNotifier(repo, cfg.Webhook.Timeout)
	assigner := usecase.NewAutoAssigner(repo, publisher)
	eventRouter = session.NewEventRouter(registry, repo, publisher, notifier, cfg, assigner)
	sessionManager.SetRouter(eventRouter)

	var contacts contactcache.Store
	if valkeyClient != nil {
		contacts = contactcache.NewValkeyStore(valkeyClient, cfg.Messaging.ContactCacheTTL)
	} else {
		contacts = contactcache.NewMemoryStore(cfg.Messaging.ContactCacheTTL)
	}
	resolver := session.NewResolver(registry, contacts, cfg)

	appUsecase = usecase.NewAppService(sessionManager, cfg)
	sendUsecase = usecase.NewSendService(sessionManager, resolver, repo, cfg)
	campaignUsecase = usecase.NewCampaignService(sessionManager, sendUsecase, repo, cfg)
	settingsUsecase = usecase.NewSettingsService(repo)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of the session engine and its backends.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if sessionManager != nil {
		sessionManager.Shutdown(context.Background())
	}
	if eventRouter != nil {
		eventRouter.Close()
	}
	if valkeyClient != nil {
		valkeyClient.Close()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
