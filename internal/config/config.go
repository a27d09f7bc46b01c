// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/ARUMANDESU/validation"
	"github.com/ARUMANDESU/validation/is"
	"github.com/caarlos0/env/v11"

	"gitlab.com/ucmsv2/ctxprop/pkg/ctxs"
	envmode "gitlab.com/ucmsv2/ctxprop/pkg/env"
	"gitlab.com/ucmsv2/ctxprop/pkg/validationx"
)

type Broker string

const (
	BrokerGoChannel Broker = "gochannel"
	BrokerPostgres  Broker = "postgres"
)

type Config struct {
	Mode envmode.Mode `env:"MODE" envDefault:"dev"`
	// Port is the HTTP listen port.
	Port string `env:"PORT" envDefault:"8080"`
	// GRPCAddr is the greeter address dialed by the API.
	GRPCAddr string `env:"GRPC_ADDR" envDefault:"localhost:50051"`
	// GRPCPort is the greeter listen port.
	GRPCPort string `env:"GRPC_PORT" envDefault:"50051"`

	DefaultLanguage string   `env:"DEFAULT_LANGUAGE" envDefault:"en"`
	DefaultTimezone string   `env:"DEFAULT_TIMEZONE" envDefault:"Asia/Shanghai"`
	Languages       []string `env:"LANGUAGES"        envDefault:"en,zh-Hans,ru" envSeparator:","`

	Broker    Broker        `env:"BROKER"      envDefault:"gochannel"`
	PgDSN     string        `env:"PG_DSN"`
	RedisAddr string        `env:"REDIS_ADDR"`
	ResultTTL time.Duration `env:"RESULT_TTL"  envDefault:"1h"`
	TaskTopic string        `env:"TASK_TOPIC"  envDefault:"tasks"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.GRPCAddr, validation.Required),
		validation.Field(&c.GRPCPort, validation.Required, is.Port),
		validation.Field(&c.DefaultLanguage, append([]validation.Rule{validation.Required}, validationx.LanguageRules...)...),
		validation.Field(&c.DefaultTimezone, append([]validation.Rule{validation.Required}, validationx.TimezoneRules...)...),
		validation.Field(&c.Languages, validation.Required, validationx.IsLanguageTagList),
		validation.Field(&c.Broker, validation.Required, validation.In(BrokerGoChannel, BrokerPostgres)),
		validation.Field(&c.PgDSN, validation.When(c.Broker == BrokerPostgres, validation.Required)),
		validation.Field(&c.ResultTTL, validation.Min(time.Second)),
		validation.Field(&c.TaskTopic, validation.Required),
		validation.Field(&c.OTelEndpoint, is.URL),
	)
}

// ResultBackend names the task result backend the configuration selects:
// redis when an address is set, postgres when the broker already needs the
// database, and memory otherwise.
func (c *Config) ResultBackend() string {
	switch {
	case c.RedisAddr != "":
		return "redis"
	case c.Broker == BrokerPostgres:
		return "postgres"
	default:
		return "memory"
	}
}

// NewStore builds the ambient context store for the configured defaults.
func (c *Config) NewStore() (*ctxs.Store, error) {
	return ctxs.NewStore(ctxs.Args{
		DefaultLanguage: c.DefaultLanguage,
		DefaultTimezone: c.DefaultTimezone,
		Languages:       c.Languages,
	})
}
