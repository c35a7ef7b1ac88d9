// Package conf loads the application configuration from file and
// environment.
package conf

import (
	"github.com/looplj/authcore/internal/log"
	"github.com/looplj/authcore/internal/server/biz"
	"github.com/looplj/authcore/internal/store"
)

// Config is the root configuration.
type Config struct {
	Log  log.Config     `conf:"log"  yaml:"log"  json:"log"`
	DB   store.Config   `conf:"db"   yaml:"db"   json:"db"`
	Auth biz.AuthConfig `conf:"auth" yaml:"auth" json:"auth"`
}
