// Package extractor turns fetched resources into index records. Each
// configured field names one extractor variant from a closed set; the
// engine runs them in field order and assembles the record.
package extractor

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/sitedex/sitedex/internal/config"
	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/utils"
)

// ErrUnknownExtractor reports an extractor name outside the recognized set.
var ErrUnknownExtractor = errors.New("unknown extractor")

// Tag names a source an extractor reads. The engine uses tags to decide
// which converter calls a record needs.
type Tag string

// Recognized source tags
const (
	TagMetadata    Tag = "metadata"
	TagText        Tag = "text"
	TagMarkupText  Tag = "markup-text"
	TagURLInfo     Tag = "url-info"
	TagHTTPHeader  Tag = "http-header"
	TagSiteConfig  Tag = "site-config"
	TagIndependent Tag = "independent"
)

// Extractor produces one field value from a fetched resource. No value for
// this resource is signaled with domain.ErrNoValueExtracted; any other
// error fails the whole record.
type Extractor interface {
	Extract(ri *domain.ResourceInfo) (any, error)
	Tags() []Tag
}

// Set holds the constructed extractor for every configured field. It is
// built once at startup, which is also where extractor names, parameters
// and location expressions are validated.
type Set struct {
	cfg        *config.Config
	extractors map[string]Extractor
	log        *utils.Logger
}

// NewSet constructs the extractors for every field in the configuration.
// An unknown variant or bad parameters are configuration errors.
func NewSet(cfg *config.Config, log *utils.Logger) (*Set, error) {
	set := &Set{
		cfg:        cfg,
		extractors: make(map[string]Extractor, len(cfg.Fields)),
		log:        log.WithComponent("extractor"),
	}
	for _, field := range cfg.Fields {
		ext, err := newExtractor(field.Extractor, set)
		if err != nil {
			return nil, domain.NewConfigError(fmt.Sprintf("field %q", field.Name), err)
		}
		set.extractors[field.Name] = ext
	}
	return set, nil
}

// Fields returns the configured fields in declaration order.
func (s *Set) Fields() []*config.Field {
	return s.cfg.Fields
}

// Extractor returns the constructed extractor for a field, or nil.
func (s *Set) Extractor(name string) Extractor {
	return s.extractors[name]
}

func (s *Set) extractorFor(name string) (Extractor, error) {
	ext, ok := s.extractors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNoSuchField, name)
	}
	return ext, nil
}

// Needs reports whether any configured extractor reads the given source.
func (s *Set) Needs(tag Tag) bool {
	for _, ext := range s.extractors {
		for _, t := range ext.Tags() {
			if t == tag {
				return true
			}
		}
	}
	return false
}

// parameterless are the extractor variants that take no parameters.
var parameterless = map[string]Extractor{
	"plain_text":    PlainText{},
	"uid":           UID{},
	"slug":          Slug{},
	"url":           URL{},
	"target_url":    TargetURL{},
	"title":         Title{},
	"description":   Description{},
	"creator":       Creator{},
	"keywords":      Keywords{},
	"filename":      Filename{},
	"last_modified": LastModified{},
	"indexing_time": IndexingTime{},
	"snippet_text":  SnippetText{},
}

// newExtractor builds one extractor from its config spec. Parameters decode
// strictly, so a misspelled parameter fails here rather than being silently
// ignored.
func newExtractor(spec config.ExtractorSpec, set *Set) (Extractor, error) {
	if ext, ok := parameterless[spec.Use]; ok {
		if len(spec.Params) > 0 {
			return nil, fmt.Errorf("extractor %q takes no parameters", spec.Use)
		}
		return ext, nil
	}

	switch spec.Use {
	case "constant":
		var params struct {
			Value any `mapstructure:"value"`
		}
		if err := decodeParams(spec, &params); err != nil {
			return nil, err
		}
		return Constant{Value: normalizeConstant(params.Value)}, nil

	case "site_attribute":
		var params struct {
			Attribute string `mapstructure:"attribute"`
		}
		if err := decodeParams(spec, &params); err != nil {
			return nil, err
		}
		if params.Attribute == "" {
			return nil, fmt.Errorf("site_attribute requires an attribute name")
		}
		return SiteAttribute{Attribute: params.Attribute}, nil

	case "header_mapping":
		var params struct {
			Header  string         `mapstructure:"header"`
			Mapping map[string]any `mapstructure:"mapping"`
			Default any            `mapstructure:"default"`
		}
		if err := decodeParams(spec, &params); err != nil {
			return nil, err
		}
		if params.Header == "" {
			return nil, fmt.Errorf("header_mapping requires a header name")
		}
		return HeaderMapping{
			Header:  params.Header,
			Mapping: params.Mapping,
			Default: params.Default,
		}, nil

	case "field_mapping":
		var params struct {
			Field   string         `mapstructure:"field"`
			Mapping map[string]any `mapstructure:"mapping"`
			Default any            `mapstructure:"default"`
		}
		if err := decodeParams(spec, &params); err != nil {
			return nil, err
		}
		if params.Field == "" {
			return nil, fmt.Errorf("field_mapping requires a field name")
		}
		return &FieldMapping{
			set:     set,
			field:   params.Field,
			mapping: params.Mapping,
			def:     params.Default,
		}, nil

	case "xpath":
		var params struct {
			Expression string `mapstructure:"expression"`
		}
		if err := decodeParams(spec, &params); err != nil {
			return nil, err
		}
		return NewXPath(params.Expression, set.log)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtractor, spec.Use)
	}
}

func decodeParams(spec config.ExtractorSpec, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(spec.Params); err != nil {
		return fmt.Errorf("bad parameters for %q: %w", spec.Use, err)
	}
	return nil
}

// normalizeConstant undoes the float64 shape JSON gives whole numbers, so
// integer constants satisfy integer fields no matter which format the
// config file used.
func normalizeConstant(value any) any {
	switch v := value.(type) {
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeConstant(item)
		}
		return out
	}
	return value
}
