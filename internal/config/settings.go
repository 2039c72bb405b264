package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings defaults
const (
	DefaultTimeout   = 30 * time.Second
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"
)

// Settings are the runtime knobs that live outside the crawl config file.
// They come from CLI flags (bound to viper in cmd) and from SITEDEX_*
// environment variables, flags winning over env over defaults.
type Settings struct {
	TikaURL       string        `mapstructure:"tika_url"`
	SolrURL       string        `mapstructure:"solr_url"`
	NotifyWebhook string        `mapstructure:"notify_webhook"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
	NoProgress    bool          `mapstructure:"no_progress"`
}

// LoadSettings reads runtime settings through the global viper instance so
// CLI flag bindings are honored.
func LoadSettings() (*Settings, error) {
	return loadSettings(viper.GetViper())
}

func loadSettings(v *viper.Viper) (*Settings, error) {
	setDefaults(v)

	v.SetEnvPrefix("SITEDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("tika_url", "")
	v.SetDefault("solr_url", "")
	v.SetDefault("notify_webhook", "")
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("user_agent", "")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("no_progress", false)
}
