package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DB       *Postgres `yaml:"database"`
	RMQ      *RabbitMQ `yaml:"rabbitmq"`
	Policies Policies  `yaml:"policies"`
}

type Postgres struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMQ struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	VHost    string `yaml:"vhost"`
}

// Policies holds the tunable business rules. None of them is a hardcoded
// constant: queue fairness, expiry windows and pickup-code behaviour all
// differ per deployment.
type Policies struct {
	// QueueOrdering is "newest_first" or "oldest_first".
	QueueOrdering string `yaml:"queue_ordering"`
	// ReadyExpiry is how long a ready order waits for pickup before the
	// scheduler abandons it.
	ReadyExpiry time.Duration `yaml:"ready_expiry"`
	// PaymentWindow is how long an online order may stay unconfirmed
	// before it is cancelled. Zero disables the sweep.
	PaymentWindow time.Duration `yaml:"payment_window"`
	// SweepInterval is the expiry scheduler tick.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	PickupCode PickupCode `yaml:"pickup_code"`
}

type PickupCode struct {
	Width       int `yaml:"width"`
	WideWidth   int `yaml:"wide_width"`
	MaxAttempts int `yaml:"max_attempts"`
}

const (
	OrderNewestFirst = "newest_first"
	OrderOldestFirst = "oldest_first"
)

// UnmarshalYAML accepts the windows as duration strings ("30m", "1h").
func (p *Policies) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		QueueOrdering string     `yaml:"queue_ordering"`
		ReadyExpiry   string     `yaml:"ready_expiry"`
		PaymentWindow string     `yaml:"payment_window"`
		SweepInterval string     `yaml:"sweep_interval"`
		PickupCode    PickupCode `yaml:"pickup_code"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	p.QueueOrdering = raw.QueueOrdering
	p.PickupCode = raw.PickupCode

	for _, d := range []struct {
		src string
		dst *time.Duration
	}{
		{raw.ReadyExpiry, &p.ReadyExpiry},
		{raw.PaymentWindow, &p.PaymentWindow},
		{raw.SweepInterval, &p.SweepInterval},
	} {
		if d.src == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.src)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", d.src, err)
		}
		*d.dst = parsed
	}

	return nil
}

// LoadConfig reads the YAML config file and applies environment overrides
// for credentials. A .env file next to the binary is honoured when present.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cnf := &Config{}
	if err := yaml.Unmarshal(data, cnf); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configPath, err)
	}

	if cnf.DB == nil {
		cnf.DB = &Postgres{}
	}
	if cnf.RMQ == nil {
		cnf.RMQ = &RabbitMQ{}
	}

	cnf.DB.Host = getEnv("DB_HOST", cnf.DB.Host)
	cnf.DB.Port = getEnv("DB_PORT", cnf.DB.Port)
	cnf.DB.User = getEnv("DB_USER", cnf.DB.User)
	cnf.DB.Password = getEnv("DB_PASSWORD", cnf.DB.Password)
	cnf.DB.Database = getEnv("DB_NAME", cnf.DB.Database)

	cnf.RMQ.Host = getEnv("RMQ_HOST", cnf.RMQ.Host)
	cnf.RMQ.Port = getEnv("RMQ_PORT", cnf.RMQ.Port)
	cnf.RMQ.User = getEnv("RMQ_USER", cnf.RMQ.User)
	cnf.RMQ.Password = getEnv("RMQ_PASSWORD", cnf.RMQ.Password)
	cnf.RMQ.VHost = getEnv("RMQ_VHOST", cnf.RMQ.VHost)

	cnf.Policies.applyDefaults()

	return cnf, nil
}

func (p *Policies) applyDefaults() {
	if p.QueueOrdering == "" {
		p.QueueOrdering = OrderNewestFirst
	}
	if p.ReadyExpiry <= 0 {
		p.ReadyExpiry = 30 * time.Minute
	}
	if p.SweepInterval <= 0 {
		p.SweepInterval = time.Minute
	}
	if p.PickupCode.Width <= 0 {
		p.PickupCode.Width = 4
	}
	if p.PickupCode.WideWidth <= p.PickupCode.Width {
		p.PickupCode.WideWidth = p.PickupCode.Width + 2
	}
	if p.PickupCode.MaxAttempts <= 0 {
		p.PickupCode.MaxAttempts = 5
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
