package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. SVH_SERVER_PORT.
const EnvPrefix = "SVH_"

// DefaultPort is used when config.yml leaves server.port unset.
const DefaultPort = 16181

var defaultPaths = []string{"config.yml", "./configs/config.yml"}

// LoadAppConfig reads config.yml (or path when given), applies environment
// overrides and defaults, and validates the result.
func LoadAppConfig(path string) (*AppConfig, error) {
	paths := defaultPaths
	if path != "" {
		paths = []string{path}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseAppConfig(data)
}

// ParseAppConfig builds a validated configuration from YAML bytes.
func ParseAppConfig(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	cfg.applyDefaults()
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("invalid config field %s: failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 10
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Redis.ValidationErrorTTLHours == 0 {
		c.Redis.ValidationErrorTTLHours = 24
	}
	if c.ObjectStore.Bucket == "" {
		c.ObjectStore.Bucket = "avl"
	}
	if c.ObjectStore.ArchivePrefix == "" {
		c.ObjectStore.ArchivePrefix = "archive"
	}
	if c.ObjectStore.PresignSeconds == 0 {
		c.ObjectStore.PresignSeconds = 300
	}
	if c.Secrets.Backend == "" {
		c.Secrets.Backend = "auto"
	}
	if c.Secrets.Service == "" {
		c.Secrets.Service = "siri-vm-hub"
	}
	if c.Producer.RequestorRef == "" {
		c.Producer.RequestorRef = "siri-vm-hub"
	}
	if c.Producer.TimeoutSeconds == 0 {
		c.Producer.TimeoutSeconds = 10
	}
	if c.Producer.HeartbeatIntervalSecs == 0 {
		c.Producer.HeartbeatIntervalSecs = 30
	}
	if c.Producer.HeartbeatTimeoutSeconds == 0 {
		c.Producer.HeartbeatTimeoutSeconds = 90
	}
	if c.Producer.MaxHeartbeatAttempts == 0 {
		c.Producer.MaxHeartbeatAttempts = 3
	}
	if c.Ingest.MaxBodyBytes == 0 {
		c.Ingest.MaxBodyBytes = 10 << 20
	}
	if c.Feed.ProducerRef == "" {
		c.Feed.ProducerRef = "siri-vm-hub"
	}
	if c.Feed.SiriVMKey == "" {
		c.Feed.SiriVMKey = "feeds/vehicle-activity.xml"
	}
	if c.Feed.GTFSRTKey == "" {
		c.Feed.GTFSRTKey = "feeds/gtfs-rt.bin"
	}
	if c.Feed.ValidUntilSeconds == 0 {
		c.Feed.ValidUntilSeconds = 300
	}
	if c.Fanout.QueueName == "" {
		c.Fanout.QueueName = "consumer-fanout"
	}
	if c.Fanout.Concurrency == 0 {
		c.Fanout.Concurrency = 8
	}
	if c.Fanout.MaxBatch == 0 {
		c.Fanout.MaxBatch = 5000
	}
	if c.Fanout.DeliveryTimeoutSeconds == 0 {
		c.Fanout.DeliveryTimeoutSeconds = 10
	}
	if c.Fanout.MaxFailedAttempts == 0 {
		c.Fanout.MaxFailedAttempts = 5
	}
	if c.Fanout.PollIntervalMS == 0 {
		c.Fanout.PollIntervalMS = 500
	}
	if c.Fanout.RearmIntervalSeconds == 0 {
		c.Fanout.RearmIntervalSeconds = 60
	}
	if c.Queue.MaxAttempts == 0 {
		c.Queue.MaxAttempts = 3
	}
	if c.Queue.RetryDelaySeconds == 0 {
		c.Queue.RetryDelaySeconds = 5
	}
}
