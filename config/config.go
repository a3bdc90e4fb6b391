package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	AfterShip AfterShipConfig `yaml:"aftership"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	ConsumerGroup string `yaml:"consumer_group"`

	TrackingRequestTopic          string `yaml:"tracking_request_topic"`
	FulfillmentTrackRequestTopic  string `yaml:"fulfillment_track_request_topic"`
	RetryRequestTopic             string `yaml:"retry_request_topic"`
	TrackDeliveryResponseTopic    string `yaml:"track_delivery_response_topic"`
	FulfillmentTrackResponseTopic string `yaml:"fulfillment_track_response_topic"`
	ExternalLogTopic              string `yaml:"external_log_topic"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AfterShipConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	// Platform tags every registered tracking and filters inbound
	// webhooks shared with other environments.
	Platform string `yaml:"platform"`

	// UseFake swaps the HTTP client for the deterministic local fake.
	UseFake bool `yaml:"use_fake"`

	RetryStatusCodes   []int    `yaml:"retry_status_codes"`
	ExceptionSubStatus []string `yaml:"exception_sub_status"`
	ExcludeStatus      []string `yaml:"exclude_status"`

	RateLimitPerMinute int64 `yaml:"rate_limit_per_minute"`
}

type GatewayConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

type SchedulerConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	PollIntervalMinutes     int `yaml:"poll_interval_minutes"`
	FetchTrackingBeforeDays int `yaml:"fetch_tracking_before_days"`

	RetryIntervalMinutes int `yaml:"retry_interval_minutes"`
	MaxRetryCount        int `yaml:"max_retry_count"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
