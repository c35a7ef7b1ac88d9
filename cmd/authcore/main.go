package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"entgo.io/ent/dialect"
	"github.com/andreazorzetto/yh/highlight"
	"github.com/hokaccha/go-prettyjson"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"gopkg.in/yaml.v3"

	"github.com/looplj/authcore/conf"
	"github.com/looplj/authcore/internal/authz"
	"github.com/looplj/authcore/internal/build"
	"github.com/looplj/authcore/internal/log"
	"github.com/looplj/authcore/internal/secure"
	"github.com/looplj/authcore/internal/server/biz"
	"github.com/looplj/authcore/internal/store"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			handleConfigCommand()
			return
		case "version", "--version", "-v":
			showVersion()
			return
		case "help", "--help", "-h":
			showHelp()
			return
		case "build-info":
			showBuildInfo()
			return
		}
	}

	startApp()
}

func showBuildInfo() {
	fmt.Println(build.GetBuildInfo())
}

type logger struct{}

func (l *logger) LogEvent(event fxevent.Event) {
	log.Debug(context.Background(), "fx event", log.Any("event", event))
}

func startApp() {
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &logger{}
		}),
		fx.Provide(conf.Load),
		fx.Provide(
			func(cfg conf.Config) store.Config { return cfg.DB },
			func(cfg conf.Config) (biz.AuthConfig, error) {
				auth := cfg.Auth
				if auth.SecretKey == "" {
					key, err := biz.GenerateSecretKey()
					if err != nil {
						return biz.AuthConfig{}, err
					}

					log.Warn(context.Background(),
						"auth.secret_key not configured, using an ephemeral key; tokens will not survive restarts")

					auth.SecretKey = key
				}

				return auth, nil
			},
		),
		fx.Provide(store.Open),
		fx.Provide(func(s *store.Store) *authz.Store { return authz.NewStore(s) }),
		fx.Provide(secure.NewRegistry),
		biz.Module,
		fx.Invoke(func(cfg conf.Config) {
			log.Setup(cfg.Log)
		}),
		fx.Invoke(func(lc fx.Lifecycle, s *store.Store) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					// sqlite schema is managed here; mysql/postgres
					// deployments migrate externally.
					if s.Dialect() == dialect.SQLite {
						return store.Migrate(ctx, s)
					}

					return nil
				},
				OnStop: func(ctx context.Context) error {
					return s.Close()
				},
			})
		}),
		fx.Invoke(func(
			*biz.AuthService,
			*biz.AccountService,
			*biz.RoleService,
			*biz.OrganizationService,
			*biz.ImpersonationService,
		) {
		}),
	)

	app.Run()
}

func handleConfigCommand() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: authcore config <preview|validate|get>")
		os.Exit(1)
	}

	switch os.Args[2] {
	case "preview":
		configPreview()
	case "validate":
		configValidate()
	case "get":
		configGet()
	default:
		fmt.Println("Usage: authcore config <preview|validate|get>")
		os.Exit(1)
	}
}

func configPreview() {
	format := "yml"

	for i := 3; i < len(os.Args); i++ {
		if os.Args[i] == "--format" || os.Args[i] == "-f" {
			if i+1 < len(os.Args) {
				format = os.Args[i+1]
			}
		}
	}

	config, err := conf.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var output string

	switch format {
	case "json":
		b, err := prettyjson.Marshal(config)
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}

		output = string(b)
	case "yml", "yaml":
		b, err := yaml.Marshal(config)
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}

		output, err = highlight.Highlight(bytes.NewBuffer(b))
		if err != nil {
			fmt.Printf("Failed to preview config: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Printf("Unsupported format: %s\n", format)
		os.Exit(1)
	}

	fmt.Println(output)
}

func configValidate() {
	config, err := conf.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	errors := validateConfig(config)

	if len(errors) == 0 {
		fmt.Println("Configuration is valid!")
		return
	}

	fmt.Println("Configuration validation failed:")

	for _, err := range errors {
		fmt.Printf("  - %s\n", err)
	}

	os.Exit(1)
}

func validateConfig(config conf.Config) []string {
	var errors []string

	switch config.DB.Dialect {
	case dialect.SQLite, dialect.MySQL, dialect.Postgres:
	default:
		errors = append(errors, fmt.Sprintf("db.dialect %q is not supported", config.DB.Dialect))
	}

	if config.DB.DSN == "" {
		errors = append(errors, "db.dsn cannot be empty")
	}

	switch config.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", config.Log.Level))
	}

	if config.Auth.TokenTTL < 0 || config.Auth.SingleUseTokenTTL < 0 {
		errors = append(errors, "auth token TTLs cannot be negative")
	}

	return errors
}

func configGet() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: authcore config get <key>")
		fmt.Println("")
		fmt.Println("Available keys:")
		fmt.Println("  db.dialect     Database dialect")
		fmt.Println("  db.dsn         Database DSN")
		fmt.Println("  log.level      Log level")
		fmt.Println("  log.format     Log format")
		os.Exit(1)
	}

	key := os.Args[3]

	config, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var value any

	switch key {
	case "db.dialect":
		value = config.DB.Dialect
	case "db.dsn":
		value = config.DB.DSN
	case "log.level":
		value = config.Log.Level
	case "log.format":
		value = config.Log.Format
	case "auth.token_ttl":
		value = config.Auth.TokenTTL
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}

	fmt.Println(value)
}

func showHelp() {
	fmt.Println("Authcore authorization service")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  authcore                   Start the service (default)")
	fmt.Println("  authcore config preview    Preview configuration")
	fmt.Println("  authcore config validate   Validate configuration")
	fmt.Println("  authcore config get <key>  Get a specific config value")
	fmt.Println("  authcore version           Show version")
	fmt.Println("  authcore build-info        Show build information")
	fmt.Println("  authcore help              Show this help message")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -f, --format FORMAT       Output format for config preview (yml, json)")
}

func showVersion() {
	fmt.Println(build.Version)
}
