package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/utils"
)

// FieldType is the declared value type of a configured field.
type FieldType string

// Recognized field types
const (
	TypeText      FieldType = "text"
	TypeBoolean   FieldType = "boolean"
	TypeInteger   FieldType = "integer"
	TypeTimestamp FieldType = "timestamp"
)

// Valid reports whether the type is one of the recognized names.
func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeBoolean, TypeInteger, TypeTimestamp:
		return true
	}
	return false
}

// Zero returns the substitute value used when a required field yields
// nothing: empty string, false, 0, or the Unix epoch in UTC.
func (t FieldType) Zero() any {
	switch t {
	case TypeBoolean:
		return false
	case TypeInteger:
		return 0
	case TypeTimestamp:
		return utils.Epoch()
	default:
		return ""
	}
}

// Accepts reports whether a single extracted value satisfies the type.
// Multivalued fields check every element through this.
func (t FieldType) Accepts(value any) bool {
	switch t {
	case TypeText:
		_, ok := value.(string)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeInteger:
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
		return false
	case TypeTimestamp:
		_, ok := value.(time.Time)
		return ok
	}
	return false
}

// ExtractorSpec names an extractor variant plus its parameters. In YAML and
// JSON it is either a bare name:
//
//	extractor: uid
//
// or a mapping whose "use" key names the variant and whose remaining keys
// become parameters:
//
//	extractor:
//	  use: header_mapping
//	  header: content-type
//	  mapping: {text/html: ContentPage}
//	  default: File
type ExtractorSpec struct {
	Use    string
	Params map[string]any
}

// UnmarshalYAML accepts the scalar shorthand or the mapping form.
func (s *ExtractorSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&s.Use)
	}
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return s.fromMap(raw)
}

// UnmarshalJSON accepts a JSON string or the mapping form.
func (s *ExtractorSpec) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		s.Use = name
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return s.fromMap(raw)
}

func (s *ExtractorSpec) fromMap(raw map[string]any) error {
	use, ok := raw["use"].(string)
	if !ok || use == "" {
		return ErrExtractorUse
	}
	delete(raw, "use")
	s.Use = use
	if len(raw) > 0 {
		s.Params = raw
	}
	return nil
}

// String renders the spec for diagnostics and the fields table.
func (s ExtractorSpec) String() string {
	if len(s.Params) == 0 {
		return s.Use
	}
	return fmt.Sprintf("%s %v", s.Use, s.Params)
}

// Field is one output field of an index record: a name, the extractor that
// produces its value, and the declared value type.
type Field struct {
	Name        string        `yaml:"name" json:"name"`
	Type        FieldType     `yaml:"type,omitempty" json:"type,omitempty"`
	Required    bool          `yaml:"required,omitempty" json:"required,omitempty"`
	Multivalued bool          `yaml:"multivalued,omitempty" json:"multivalued,omitempty"`
	Extractor   ExtractorSpec `yaml:"extractor" json:"extractor"`
}

// SiteSpec is the on-disk shape of one crawl target. Loading converts it to
// a domain.Site so the adaptive sleeptime state lives in one place.
type SiteSpec struct {
	URL        string            `yaml:"url" json:"url"`
	Attributes map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Sleeptime  float64           `yaml:"sleeptime,omitempty" json:"sleeptime,omitempty"`
}

// Config is the loaded crawl configuration: the sites to crawl, the fields
// of each index record, the names of the three fields the crawl machinery
// itself reads (unique id, URL, last-modified), and the external service
// endpoints.
type Config struct {
	Sites             []*domain.Site
	Fields            []*Field
	UniqueField       string
	URLField          string
	LastModifiedField string
	Tika              string
	Solr              string
	NotifyWebhook     string
}

// GetField returns the configured field with the given name.
func (c *Config) GetField(name string) (*Field, error) {
	for _, field := range c.Fields {
		if field.Name == name {
			return field, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrNoSuchField, name)
}

// GetSite returns the configured site owning the given URL: an exact match
// on the base URL, else the longest base URL the argument falls under.
func (c *Config) GetSite(url string) (*domain.Site, error) {
	for _, site := range c.Sites {
		if site.URL == url {
			return site, nil
		}
	}
	var best *domain.Site
	for _, site := range c.Sites {
		if site.Contains(url) && (best == nil || len(site.URL) > len(best.URL)) {
			best = site
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrSiteNotFound, url)
	}
	return best, nil
}

// ApplyOverrides lets runtime settings replace the endpoint URLs declared in
// the file. After overrides both service endpoints must be known; a missing
// one is a fatal configuration error.
func (c *Config) ApplyOverrides(tika, solr, notifyWebhook string) error {
	if tika != "" {
		c.Tika = tika
	}
	if solr != "" {
		c.Solr = solr
	}
	if notifyWebhook != "" {
		c.NotifyWebhook = notifyWebhook
	}
	if c.Tika == "" || c.Solr == "" {
		return domain.NewConfigError(
			"tika and solr URLs must be specified, either as command line arguments or in the configuration file", nil)
	}
	return nil
}

// Validate checks the structural invariants of a loaded configuration.
func (c *Config) Validate() error {
	if len(c.Sites) == 0 {
		return ErrNoSites
	}
	for i, site := range c.Sites {
		if site.URL == "" {
			return fmt.Errorf("site %d: %w", i, ErrEmptySiteURL)
		}
		if !utils.IsHTTPURL(site.URL) {
			return fmt.Errorf("site %q: %w", site.URL, ErrSiteURLNotAbsolute)
		}
	}
	if len(c.Fields) == 0 {
		return ErrNoFields
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for _, field := range c.Fields {
		if field.Name == "" {
			return ErrEmptyFieldName
		}
		if _, dup := seen[field.Name]; dup {
			return fmt.Errorf("field %q: %w", field.Name, ErrDuplicateField)
		}
		seen[field.Name] = struct{}{}
		if !field.Type.Valid() {
			return fmt.Errorf("field %q: %w: %q", field.Name, ErrUnknownFieldType, field.Type)
		}
		if field.Extractor.Use == "" {
			return fmt.Errorf("field %q: %w", field.Name, ErrNoExtractor)
		}
	}
	for _, ref := range []struct {
		option string
		name   string
	}{
		{"unique_field", c.UniqueField},
		{"url_field", c.URLField},
		{"last_modified_field", c.LastModifiedField},
	} {
		if ref.name == "" {
			return fmt.Errorf("%w: %s", ErrMissingFieldOption, ref.option)
		}
		if _, err := c.GetField(ref.name); err != nil {
			return fmt.Errorf("%s: %w", ref.option, err)
		}
	}
	return nil
}
