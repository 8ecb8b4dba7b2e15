// internal/config/config.go

// Package config loads the waymark JSON configuration file and exposes
// typed views of its sections.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SceneConfig names the scene this store instance annotates.
type SceneConfig struct {
	Name string `json:"name" mapstructure:"name"`
}

// DBConfig holds relational persistence settings. Driver selects sqlite
// (file at Path) or postgres (remaining fields).
type DBConfig struct {
	Driver   string `json:"driver" mapstructure:"driver"`
	Path     string `json:"path" mapstructure:"path"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN renders the postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// PersistConfig controls the write-behind database mirror.
type PersistConfig struct {
	Enabled      bool `json:"enabled" mapstructure:"enabled"`
	Restore      bool `json:"restore" mapstructure:"restore"`
	FlushSeconds int  `json:"flushSeconds" mapstructure:"flushSeconds"`
}

// FlushInterval returns the write-behind flush period.
func (c PersistConfig) FlushInterval() time.Duration {
	if c.FlushSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.FlushSeconds) * time.Second
}

// InfluxConfig holds the metrics sink settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
}

// URL renders the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds the GELF log sink settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// FeedConfig holds the live marker feed settings.
type FeedConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
}

// APIConfig holds the snapshot upload endpoint settings.
type APIConfig struct {
	ServerURL    string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey       string `json:"apiKey" mapstructure:"apiKey"`
	UploadOnExit bool   `json:"uploadOnExit" mapstructure:"uploadOnExit"`
}

// AnchorConfig pins the scene's local origin to a geographic location so
// positions can be mirrored into projected map coordinates.
type AnchorConfig struct {
	Enabled   bool    `json:"enabled" mapstructure:"enabled"`
	Latitude  float64 `json:"latitude" mapstructure:"latitude"`
	Longitude float64 `json:"longitude" mapstructure:"longitude"`
}

// ExportConfig holds document export output settings.
type ExportConfig struct {
	Dir      string `json:"dir" mapstructure:"dir"`
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// OTelConfig holds OpenTelemetry log export settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// Load reads configuration from waymark.cfg.json in configDir and sets
// default values. A missing file is not an error; defaults apply.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./waymarklogs")

	viper.SetDefault("scene.name", "default")

	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.path", "./waymark.db")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "waymark")

	viper.SetDefault("persist.enabled", true)
	viper.SetDefault("persist.restore", true)
	viper.SetDefault("persist.flushSeconds", 5)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "waymark-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("feed.enabled", false)
	viper.SetDefault("feed.url", "ws://localhost:8723/feed")
	viper.SetDefault("feed.secret", "")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.uploadOnExit", false)

	viper.SetDefault("anchor.enabled", false)
	viper.SetDefault("anchor.latitude", 0.0)
	viper.SetDefault("anchor.longitude", 0.0)

	viper.SetDefault("export.dir", "./exports")
	viper.SetDefault("export.compress", false)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "waymark")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("waymark.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %v", err)
	}
	return nil
}

// GetSceneConfig returns the scene section.
func GetSceneConfig() SceneConfig {
	return SceneConfig{Name: viper.GetString("scene.name")}
}

// GetDBConfig returns the db section.
func GetDBConfig() DBConfig {
	return DBConfig{
		Driver:   viper.GetString("db.driver"),
		Path:     viper.GetString("db.path"),
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetPersistConfig returns the persist section.
func GetPersistConfig() PersistConfig {
	return PersistConfig{
		Enabled:      viper.GetBool("persist.enabled"),
		Restore:      viper.GetBool("persist.restore"),
		FlushSeconds: viper.GetInt("persist.flushSeconds"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
	}
}

// GetGraylogConfig returns the graylog section.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetFeedConfig returns the feed section.
func GetFeedConfig() FeedConfig {
	return FeedConfig{
		Enabled: viper.GetBool("feed.enabled"),
		URL:     viper.GetString("feed.url"),
		Secret:  viper.GetString("feed.secret"),
	}
}

// GetAPIConfig returns the api section.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL:    viper.GetString("api.serverUrl"),
		APIKey:       viper.GetString("api.apiKey"),
		UploadOnExit: viper.GetBool("api.uploadOnExit"),
	}
}

// GetAnchorConfig returns the anchor section.
func GetAnchorConfig() AnchorConfig {
	return AnchorConfig{
		Enabled:   viper.GetBool("anchor.enabled"),
		Latitude:  viper.GetFloat64("anchor.latitude"),
		Longitude: viper.GetFloat64("anchor.longitude"),
	}
}

// GetExportConfig returns the export section.
func GetExportConfig() ExportConfig {
	return ExportConfig{
		Dir:      viper.GetString("export.dir"),
		Compress: viper.GetBool("export.compress"),
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
