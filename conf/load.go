package conf

import (
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Load reads the configuration from authcore.yml (searched in ., ./conf and
// /etc/authcore) and the AUTHCORE_* environment, falling back to defaults. A
// missing config file is not an error; a malformed one is.
func Load() (Config, error) {
	v := viper.New()

	v.SetConfigName("authcore")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./conf")
	v.AddConfigPath("/etc/authcore")

	v.SetEnvPrefix("AUTHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("conf: read config: %w", err)
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "conf"
	})
	if err != nil {
		return Config{}, fmt.Errorf("conf: unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("db.dialect", dialect.SQLite)
	v.SetDefault("db.dsn", "file:authcore.db?cache=shared&_pragma=foreign_keys(1)")

	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("auth.single_use_token_ttl", "5m")
}
