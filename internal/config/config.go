// Package config provides configuration types and helpers for logwarden.
package config

import (
	"fmt"
	"strings"
)

// Config holds the application-wide configuration.
type Config struct {
	Format           string             `mapstructure:"format"`
	Verbose          bool               `mapstructure:"verbose"`
	TimestampFormats []string           `mapstructure:"timestamp_formats"`
	Parsing          map[string]LogType `mapstructure:"parsing"`
	PointAnomalies   PointRules         `mapstructure:"point_anomalies"`
	Sequence         SequenceConfig     `mapstructure:"sequence"`
	Alerting         AlertConfig        `mapstructure:"alerting"`
	Inputs           []Input            `mapstructure:"inputs"`
}

// LogFormat selects how a log type is parsed.
type LogFormat string

const (
	FormatRegex LogFormat = "regex"
	FormatJSON  LogFormat = "json"
	FormatCSV   LogFormat = "csv"
)

// TimestampConvention selects how the timestamp field is normalized.
type TimestampConvention string

const (
	TimestampSyslog TimestampConvention = "syslog" // "Jan 5 10:00:00", no year
	TimestampISO    TimestampConvention = "iso"    // ISO-8601 with "YYYY-MM-DD HH:MM:SS" fallback
	TimestampAuto   TimestampConvention = "auto"   // iso, then syslog
)

// MessageStyle selects the template used to synthesize a missing message.
type MessageStyle string

const (
	MessageStructured MessageStyle = "structured" // Event {event_id} by {user} on {computer}
	MessageLine       MessageStyle = "line"       // Event {template_id} in {path}
	MessageGeneric    MessageStyle = "generic"    // Log entry from {path}
)

// LogType describes how one kind of log source is parsed.
type LogType struct {
	Format      LogFormat           `mapstructure:"format"`
	Patterns    []string            `mapstructure:"patterns"`
	KeysMapping map[string]string   `mapstructure:"keys_mapping"`
	Delimiter   string              `mapstructure:"delimiter"`
	Timestamp   TimestampConvention `mapstructure:"timestamp"`
	Message     MessageStyle        `mapstructure:"message"`
}

// TimestampFor returns the explicit convention, or the one implied by the
// log type name.
func (lt LogType) TimestampFor(name string) TimestampConvention {
	if lt.Timestamp != "" {
		return lt.Timestamp
	}
	switch strings.ToLower(name) {
	case "authlog", "syslog":
		return TimestampSyslog
	case "windowslog":
		return TimestampISO
	default:
		return TimestampAuto
	}
}

// MessageFor returns the explicit message style, or the one implied by the
// log type name and format.
func (lt LogType) MessageFor(name string) MessageStyle {
	if lt.Message != "" {
		return lt.Message
	}
	switch strings.ToLower(name) {
	case "windowslog", "windows_csv", "json":
		return MessageStructured
	case "authlog", "syslog", "regex":
		return MessageLine
	}
	switch lt.Format {
	case FormatJSON, FormatCSV:
		return MessageStructured
	case FormatRegex:
		return MessageLine
	default:
		return MessageGeneric
	}
}

// CSVDelimiter returns the configured delimiter rune, defaulting to ','.
func (lt LogType) CSVDelimiter() rune {
	for _, r := range lt.Delimiter {
		return r
	}
	return ','
}

// PointRules configures the point anomaly detector.
type PointRules struct {
	TemplateRules   []string `mapstructure:"template_rules"`
	AttributeFields []string `mapstructure:"attribute_fields"`
	IQRFactor       float64  `mapstructure:"iqr_factor"`
}

// SequenceConfig configures the n-gram sequence model.
type SequenceConfig struct {
	N            int `mapstructure:"n"`
	MinFrequency int `mapstructure:"min_frequency"`
}

// AlertConfig holds alert channel configuration.
type AlertConfig struct {
	Channels  ChannelsConfig  `mapstructure:"channels"`
	Filters   FilterConfig    `mapstructure:"filters"`
	Console   ConsoleConfig   `mapstructure:"console"`
	Email     EmailConfig     `mapstructure:"email"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Redaction RedactionConfig `mapstructure:"redaction"`
}

// ChannelsConfig toggles alert channels.
type ChannelsConfig struct {
	Console  bool `mapstructure:"console"`
	Email    bool `mapstructure:"email"`
	Kafka    bool `mapstructure:"kafka"`
	Redis    bool `mapstructure:"redis"`
	Postgres bool `mapstructure:"postgres"`
	Ollama   bool `mapstructure:"ollama"`
}

// FilterConfig restricts which findings are delivered.
type FilterConfig struct {
	// SeverityLevels lists the severities to deliver; empty means all.
	SeverityLevels []string `mapstructure:"severity_levels"`
}

// ConsoleConfig holds console sink settings.
type ConsoleConfig struct {
	// Color is one of "auto", "always", "never".
	Color string `mapstructure:"color"`
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	SMTPServer string   `mapstructure:"smtp_server"`
	SMTPPort   int      `mapstructure:"smtp_port"`
	UseTLS     bool     `mapstructure:"use_tls"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"` // usually LOGWARDEN_ALERTING_EMAIL_PASSWORD
	FromAddr   string   `mapstructure:"from_addr"`
	ToAddrs    []string `mapstructure:"to_addrs"`
}

// KafkaConfig holds Kafka sink settings.
type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
	Balancer     string   `mapstructure:"balancer"` // "roundrobin", "leastbytes", "hash"
	WriteTimeout string   `mapstructure:"write_timeout"`
}

// RedisConfig holds Redis stream sink settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
	MaxLen   int64  `mapstructure:"max_len"`
}

// PostgresConfig holds PostgreSQL sink settings.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// OllamaConfig holds Ollama-specific settings.
type OllamaConfig struct {
	Host    string `mapstructure:"host"`    // API endpoint
	Model   string `mapstructure:"model"`   // Default model name
	Timeout string `mapstructure:"timeout"` // e.g., "30s"
	Prompt  string `mapstructure:"prompt"`  // "explain" or "remediate"
	Stream  bool   `mapstructure:"stream"`  // print tokens as they arrive
}

// RedactionConfig holds configuration for secret redaction of alert payloads.
type RedactionConfig struct {
	// Enabled controls whether redaction is active
	Enabled bool `mapstructure:"enabled"`

	// Patterns specifies which redaction patterns to use
	// Available: ipv4, ipv6, email, api_key, aws_key, jwt, private_key, mac_address, credit_card, uuid
	Patterns []string `mapstructure:"patterns"`
}

// Input binds a file path or glob to a log type.
type Input struct {
	Path    string `mapstructure:"path"`
	LogType string `mapstructure:"log_type"`
}

// Validate reports configuration that can never work. Gaps such as a
// missing mapping are not errors; they parse to empty defaults.
func (c *Config) Validate() error {
	for name, lt := range c.Parsing {
		switch lt.Format {
		case FormatRegex, FormatJSON, FormatCSV:
		default:
			return fmt.Errorf("parsing.%s: unsupported format %q (must be regex, json or csv)", name, lt.Format)
		}
		switch lt.Timestamp {
		case "", TimestampSyslog, TimestampISO, TimestampAuto:
		default:
			return fmt.Errorf("parsing.%s: unsupported timestamp convention %q", name, lt.Timestamp)
		}
		if len([]rune(lt.Delimiter)) > 1 {
			return fmt.Errorf("parsing.%s: delimiter must be a single character", name)
		}
	}
	if c.PointAnomalies.IQRFactor < 0 {
		return fmt.Errorf("point_anomalies.iqr_factor must not be negative")
	}
	if c.Sequence.N < 0 || c.Sequence.MinFrequency < 0 {
		return fmt.Errorf("sequence.n and sequence.min_frequency must not be negative")
	}
	return nil
}
