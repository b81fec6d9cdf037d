// Package config loads dashboard configuration from TOML files, environment
// variables and command-line flags via viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeney/proxtrend/internal/logging"
	"github.com/sweeney/proxtrend/internal/plant"
	"github.com/sweeney/proxtrend/internal/source"
	"github.com/sweeney/proxtrend/internal/status"
	"github.com/sweeney/proxtrend/internal/trend"
)

// EnvPrefix prefixes environment overrides, e.g. PROXTREND_HTTP_ADDR.
const EnvPrefix = "PROXTREND"

// Config is the complete dashboard configuration.
type Config struct {
	Sampling    Sampling     `toml:"sampling" mapstructure:"sampling"`
	HTTP        HTTP         `toml:"http" mapstructure:"http"`
	MQTT        MQTT         `toml:"mqtt" mapstructure:"mqtt"`
	Log         Log          `toml:"log" mapstructure:"log"`
	Controllers []Controller `toml:"controllers" mapstructure:"controllers"`
}

// Sampling controls the trend cadence.
type Sampling struct {
	Interval   time.Duration `toml:"interval" mapstructure:"interval"`
	Window     time.Duration `toml:"window" mapstructure:"window"`
	Redraw     time.Duration `toml:"redraw" mapstructure:"redraw"`
	Debounce   time.Duration `toml:"debounce" mapstructure:"debounce"`
	InitialBed string        `toml:"initial_bed" mapstructure:"initial_bed"`
}

// HTTP configures the dashboard server.
type HTTP struct {
	Addr        string `toml:"addr" mapstructure:"addr"`
	Readme      string `toml:"readme" mapstructure:"readme"`
	ChartWidth  int    `toml:"chart_width" mapstructure:"chart_width"`
	ChartHeight int    `toml:"chart_height" mapstructure:"chart_height"`
}

// MQTT configures how tag gateways are reached.
type MQTT struct {
	Port           int           `toml:"port" mapstructure:"port"`
	TopicPrefix    string        `toml:"topic_prefix" mapstructure:"topic_prefix"`
	StaleAfter     time.Duration `toml:"stale_after" mapstructure:"stale_after"`
	ConnectTimeout time.Duration `toml:"connect_timeout" mapstructure:"connect_timeout"`
	ClientID       string        `toml:"client_id" mapstructure:"client_id"`
}

// Log configures logging.
type Log struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// Controller is one entry of the plant table.
type Controller struct {
	Label     string   `toml:"label" mapstructure:"label"`
	Address   string   `toml:"address" mapstructure:"address"`
	Kind      string   `toml:"kind" mapstructure:"kind"`
	Beds      []string `toml:"beds" mapstructure:"beds"`
	Chip      string   `toml:"chip" mapstructure:"chip"`
	Lines     []Line   `toml:"lines" mapstructure:"lines"`
	ActiveLow bool     `toml:"active_low" mapstructure:"active_low"`
}

// Line maps a tag to a GPIO line offset. Tags are listed rather than keyed
// because viper lowercases map keys.
type Line struct {
	Tag    string `toml:"tag" mapstructure:"tag"`
	Offset int    `toml:"offset" mapstructure:"offset"`
}

// New returns a viper instance with every default set and environment
// overrides enabled.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("sampling.interval", trend.DefaultInterval)
	v.SetDefault("sampling.window", trend.DefaultWindow)
	v.SetDefault("sampling.redraw", 40*time.Millisecond)
	v.SetDefault("sampling.debounce", time.Duration(0))
	v.SetDefault("sampling.initial_bed", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readme", "")
	v.SetDefault("http.chart_width", 960)
	v.SetDefault("http.chart_height", 360)
	v.SetDefault("mqtt.port", source.DefaultMQTTPort)
	v.SetDefault("mqtt.topic_prefix", source.DefaultTopicPrefix)
	v.SetDefault("mqtt.stale_after", time.Duration(0))
	v.SetDefault("mqtt.connect_timeout", source.DefaultConnectTimeout)
	v.SetDefault("mqtt.client_id", source.DefaultClientID)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if not empty) into v, decodes the result and validates it.
// A file without controllers gets the built-in plant table.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Controllers) == 0 {
		cfg.Controllers = FromTable(plant.Default())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the dashboard cannot run with.
func (c Config) Validate() error {
	s := c.Sampling
	if s.Interval <= 0 {
		return errors.New("config: sampling.interval must be positive")
	}
	if s.Window <= 0 {
		return errors.New("config: sampling.window must be positive")
	}
	if s.Window < s.Interval {
		return errors.New("config: sampling.window must be at least one interval")
	}
	if s.Redraw <= 0 {
		return errors.New("config: sampling.redraw must be positive")
	}
	if s.Debounce < 0 {
		return errors.New("config: sampling.debounce must not be negative")
	}
	if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
		return fmt.Errorf("config: mqtt.port %d out of range", c.MQTT.Port)
	}

	table := c.Plant()
	if err := table.Validate(); err != nil {
		return err
	}
	if s.InitialBed != "" {
		if _, err := table.FindBed(s.InitialBed); err != nil {
			return fmt.Errorf("config: sampling.initial_bed: %w", err)
		}
	}
	return nil
}

// Plant returns the plant table.
func (c Config) Plant() plant.Table {
	t := make(plant.Table, 0, len(c.Controllers))
	for _, cc := range c.Controllers {
		pc := plant.Controller{
			Label:     cc.Label,
			Address:   cc.Address,
			Kind:      cc.Kind,
			Beds:      append([]string(nil), cc.Beds...),
			Chip:      cc.Chip,
			ActiveLow: cc.ActiveLow,
		}
		if len(cc.Lines) > 0 {
			pc.Lines = make(map[string]int, len(cc.Lines))
			for _, l := range cc.Lines {
				pc.Lines[l.Tag] = l.Offset
			}
		}
		t = append(t, pc)
	}
	return t
}

// FromTable converts a plant table into its configuration form.
func FromTable(t plant.Table) []Controller {
	out := make([]Controller, 0, len(t))
	for _, pc := range t {
		cc := Controller{
			Label:     pc.Label,
			Address:   pc.Address,
			Kind:      pc.Kind,
			Beds:      append([]string(nil), pc.Beds...),
			Chip:      pc.Chip,
			ActiveLow: pc.ActiveLow,
		}
		for tag, off := range pc.Lines {
			cc.Lines = append(cc.Lines, Line{Tag: tag, Offset: off})
		}
		out = append(out, cc)
	}
	return out
}

// Engine returns the trend cadence.
func (c Config) Engine() trend.Config {
	return trend.Config{Interval: c.Sampling.Interval, Window: c.Sampling.Window}
}

// MQTTOptions returns the tag gateway options.
func (c Config) MQTTOptions() source.MQTTOptions {
	return source.MQTTOptions{
		Port:           c.MQTT.Port,
		TopicPrefix:    c.MQTT.TopicPrefix,
		StaleAfter:     c.MQTT.StaleAfter,
		ConnectTimeout: c.MQTT.ConnectTimeout,
		ClientID:       c.MQTT.ClientID,
	}
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	return logging.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

// Status returns the configuration shown on the status page.
func (c Config) Status() status.Config {
	return status.Config{
		Interval: c.Sampling.Interval,
		Window:   c.Sampling.Window,
		Redraw:   c.Sampling.Redraw,
		Debounce: c.Sampling.Debounce,
		HTTPAddr: c.HTTP.Addr,
	}
}
