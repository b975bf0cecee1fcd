package config

import (
	"errors"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
)

// Ledger backends
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
	BackendS3       = "s3"
	BackendMemory   = "memory"
)

var backends = []string{BackendFile, BackendRedis, BackendDynamoDB, BackendS3, BackendMemory}

// Config is the server configuration. Environment variables are read first
// and command-line flags override them.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	LedgerBackend string `env:"LEDGER_BACKEND" envDefault:"file"`
	LedgerDir     string `env:"LEDGER_DIR" envDefault:"data"`
	LedgerPrefix  string `env:"LEDGER_PREFIX" envDefault:"openmm"`
	LedgerTable   string `env:"LEDGER_TABLE" envDefault:"RatingLedger"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AWSRegion string `env:"AWS_REGION" envDefault:"us-east-1"`
	S3Bucket  string `env:"S3_BUCKET_NAME"`

	CommunitiesFile string `env:"COMMUNITIES_FILE" envDefault:"communities.yaml"`

	ResolvedMatchRetention time.Duration `env:"RESOLVED_MATCH_RETENTION" envDefault:"24h"`
	SuspensionRetention    time.Duration `env:"SUSPENSION_RETENTION" envDefault:"720h"`
	SweepInterval          time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// ErrHelp is returned by Load when --help was requested.
var ErrHelp = pflag.ErrHelp

// Load reads the environment, then applies flags from args.
func Load(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "parse env")
	}

	fs := pflag.NewFlagSet("openmm", pflag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	fs.StringVar(&cfg.LedgerBackend, "ledger-backend", cfg.LedgerBackend, "rating ledger store: file, redis, dynamodb, s3 or memory")
	fs.StringVar(&cfg.LedgerDir, "ledger-dir", cfg.LedgerDir, "directory of the file ledger store")
	fs.StringVar(&cfg.LedgerPrefix, "ledger-prefix", cfg.LedgerPrefix, "key prefix for the redis and s3 ledger stores")
	fs.StringVar(&cfg.LedgerTable, "ledger-table", cfg.LedgerTable, "DynamoDB table of the ledger")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address")
	fs.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "redis database")
	fs.StringVar(&cfg.AWSRegion, "aws-region", cfg.AWSRegion, "AWS region")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket of the ledger snapshots")
	fs.StringVar(&cfg.CommunitiesFile, "communities", cfg.CommunitiesFile, "YAML file with per-community settings")
	fs.DurationVar(&cfg.ResolvedMatchRetention, "resolved-match-retention", cfg.ResolvedMatchRetention, "how long resolved matches can be corrected")
	fs.DurationVar(&cfg.SuspensionRetention, "suspension-retention", cfg.SuspensionRetention, "how long ended suspensions are kept")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "interval of the retention sweep")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "zerolog level")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "human-readable console logs")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return cfg, ErrHelp
		}
		return cfg, eris.Wrap(err, "parse flags")
	}
	return cfg, cfg.Validate()
}

// Validate checks values that env and flag parsing cannot.
func (c Config) Validate() error {
	if !slices.Contains(backends, c.LedgerBackend) {
		return eris.Errorf("unknown ledger backend %q", c.LedgerBackend)
	}
	if c.LedgerBackend == BackendS3 && c.S3Bucket == "" {
		return eris.New("the s3 ledger backend needs S3_BUCKET_NAME")
	}
	if c.ResolvedMatchRetention <= 0 || c.SuspensionRetention <= 0 || c.SweepInterval <= 0 {
		return eris.New("retention windows and the sweep interval must be positive")
	}
	return nil
}
