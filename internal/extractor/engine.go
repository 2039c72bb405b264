package extractor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/sitedex/sitedex/internal/config"
	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/utils"
)

// Engine assembles one index record per fetched resource by running every
// configured field's extractor in declaration order.
type Engine struct {
	converter domain.Converter
	set       *Set
	log       *utils.Logger
}

// NewEngine creates an engine over a constructed extractor set.
func NewEngine(converter domain.Converter, set *Set, log *utils.Logger) *Engine {
	return &Engine{
		converter: converter,
		set:       set,
		log:       log.WithComponent("extractor"),
	}
}

// BuildRecord produces the index record for a fetched resource. Converter
// calls happen once up front and only when some configured extractor reads
// their output. A field that yields no value is substituted with its type's
// zero when required and omitted when optional; any other extraction
// failure fails the whole record.
func (e *Engine) BuildRecord(ctx context.Context, ri *domain.ResourceInfo) (domain.Record, error) {
	if err := e.loadSources(ctx, ri); err != nil {
		return nil, err
	}

	fields := e.set.Fields()
	record := make(domain.Record, len(fields))
	for _, field := range fields {
		ext := e.set.Extractor(field.Name)
		if ext == nil {
			return nil, domain.NewExtractionError(field.Name, ErrUnknownExtractor)
		}

		value, err := ext.Extract(ri)
		if errors.Is(err, domain.ErrNoValueExtracted) {
			if field.Required {
				record[field.Name] = wireValue(field.Type.Zero())
			}
			continue
		}
		if err != nil {
			return nil, domain.NewExtractionError(field.Name, err)
		}

		validated, err := validateValue(field, value)
		if err != nil {
			return nil, domain.NewExtractionError(field.Name, err)
		}
		record[field.Name] = validated
	}
	return record, nil
}

// loadSources runs the converter calls the configured extractors need.
// Markup extractors re-read the downloaded file themselves, so only the
// metadata and text sources cost a converter round trip.
func (e *Engine) loadSources(ctx context.Context, ri *domain.ResourceInfo) error {
	needMetadata := e.set.Needs(TagMetadata)
	needText := e.set.Needs(TagText)

	switch {
	case needMetadata && needText:
		return e.converter.ExtractAll(ctx, ri)
	case needMetadata:
		metadata, err := e.converter.ExtractMetadata(ctx, ri)
		if err != nil {
			return err
		}
		ri.Metadata = metadata
	case needText:
		text, err := e.converter.ExtractText(ctx, ri)
		if err != nil {
			return err
		}
		ri.Text = text
	}
	return nil
}

// validateValue checks an extracted value against the field's declared type
// and converts it to its wire shape. Multivalued fields validate slices per
// element; a scalar on a multivalued field passes through as-is since the
// index accepts it either way.
func validateValue(field *config.Field, value any) (any, error) {
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Slice {
		if !field.Multivalued {
			return nil, typeMismatch(field, value)
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			element := rv.Index(i).Interface()
			if !field.Type.Accepts(element) {
				return nil, typeMismatch(field, element)
			}
			out[i] = wireValue(element)
		}
		return out, nil
	}

	if !field.Type.Accepts(value) {
		return nil, typeMismatch(field, value)
	}
	return wireValue(value), nil
}

func typeMismatch(field *config.Field, value any) error {
	return fmt.Errorf("value %v (%T) does not satisfy type %q", value, value, field.Type)
}

// wireValue converts a validated value to the shape submitted to the index.
func wireValue(value any) any {
	if t, ok := value.(time.Time); ok {
		return utils.NewTimestamp(t)
	}
	return value
}
