package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sitedex/sitedex/internal/domain"
)

// Loader loads and validates crawl configuration files
type Loader struct{}

// NewLoader creates a new config loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses a configuration file from the given path
func (l *Loader) Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.LoadFromBytes(data, filepath.Ext(path))
}

// LoadFromBytes parses a configuration from raw bytes
func (l *Loader) LoadFromBytes(data []byte, ext string) (*Config, error) {
	ext = strings.ToLower(ext)

	var doc document
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExt, ext)
	}

	cfg := doc.build()
	l.applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// document mirrors the on-disk configuration shape.
type document struct {
	Sites             []SiteSpec `yaml:"sites" json:"sites"`
	UniqueField       string     `yaml:"unique_field" json:"unique_field"`
	URLField          string     `yaml:"url_field" json:"url_field"`
	LastModifiedField string     `yaml:"last_modified_field" json:"last_modified_field"`
	Fields            []*Field   `yaml:"fields" json:"fields"`
	Tika              string     `yaml:"tika,omitempty" json:"tika,omitempty"`
	Solr              string     `yaml:"solr,omitempty" json:"solr,omitempty"`
	NotifyWebhook     string     `yaml:"notify_webhook,omitempty" json:"notify_webhook,omitempty"`
}

func (d *document) build() *Config {
	cfg := &Config{
		Fields:            d.Fields,
		UniqueField:       d.UniqueField,
		URLField:          d.URLField,
		LastModifiedField: d.LastModifiedField,
		Tika:              d.Tika,
		Solr:              d.Solr,
		NotifyWebhook:     d.NotifyWebhook,
	}
	for _, spec := range d.Sites {
		cfg.Sites = append(cfg.Sites, domain.NewSite(spec.URL, spec.Attributes, spec.Sleeptime))
	}
	return cfg
}

func (l *Loader) applyDefaults(cfg *Config) {
	for _, field := range cfg.Fields {
		if field.Type == "" {
			field.Type = TypeText
		}
	}
}
