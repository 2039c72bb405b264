package extractor

import (
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/antchfx/xpath"
	"github.com/google/uuid"

	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/markup"
	"github.com/sitedex/sitedex/internal/utils"
)

// titleExpression is where page titles live in the markup of the sites this
// crawler was built for.
const titleExpression = "//div[@id='content']/h1"

// PlainText returns the converter's plain text with whitespace normalized.
type PlainText struct{}

func (PlainText) Tags() []Tag { return []Tag{TagText} }

func (PlainText) Extract(ri *domain.ResourceInfo) (any, error) {
	return utils.NormalizeWhitespace(ri.Text), nil
}

// UID derives a stable unique id from the URL: its MD5 digest read as a
// UUID.
type UID struct{}

func (UID) Tags() []Tag { return []Tag{TagURLInfo} }

func (UID) Extract(ri *domain.ResourceInfo) (any, error) {
	sum := md5.Sum([]byte(ri.URLInfo.Loc))
	id, err := uuid.FromBytes(sum[:])
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}

// Slug returns the slugified basename of the URL path.
type Slug struct{}

func (Slug) Tags() []Tag { return []Tag{TagURLInfo} }

func (Slug) Extract(ri *domain.ResourceInfo) (any, error) {
	return slugFromURL(ri.URLInfo.Loc), nil
}

// URL returns the sitemap loc.
type URL struct{}

func (URL) Tags() []Tag { return []Tag{TagURLInfo} }

func (URL) Extract(ri *domain.ResourceInfo) (any, error) {
	return ri.URLInfo.Loc, nil
}

// TargetURL returns the sitemap target when present, else the loc. Sites
// use targets to point search hits at a canonical or downloadable variant.
type TargetURL struct{}

func (TargetURL) Tags() []Tag { return []Tag{TagURLInfo} }

func (TargetURL) Extract(ri *domain.ResourceInfo) (any, error) {
	if ri.URLInfo.Target != "" {
		return ri.URLInfo.Target, nil
	}
	return ri.URLInfo.Loc, nil
}

// Title resolves the document title through a fallback chain: the
// X-Document-Title header (base64), the content heading in the markup, the
// converter metadata, the Content-Disposition filename, and finally the URL
// slug.
type Title struct{}

func (Title) Tags() []Tag {
	return []Tag{TagHTTPHeader, TagMarkupText, TagMetadata, TagURLInfo}
}

func (Title) Extract(ri *domain.ResourceInfo) (any, error) {
	title, err := extractTitle(ri)
	if err != nil {
		return nil, err
	}
	return utils.NormalizeWhitespace(title), nil
}

func extractTitle(ri *domain.ResourceInfo) (string, error) {
	if encoded := ri.Header("X-Document-Title"); encoded != "" {
		if decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded)); err == nil {
			return strings.TrimSpace(strings.ToValidUTF8(string(decoded), "�")), nil
		}
	}

	if ri.Filename != "" && markup.IsMarkup(ri.ContentType) {
		if doc, err := markup.ParseFile(ri.Filename, ri.ContentType); err == nil {
			if texts, err := markup.Query(doc, titleExpression); err == nil && len(texts) > 0 {
				if title := strings.TrimSpace(texts[0]); title != "" {
					return title, nil
				}
			}
		}
	}

	if title, ok := ri.Metadata["title"]; ok && title != "" {
		return title, nil
	}

	if name, err := filenameFromHeaders(ri); err == nil {
		return name, nil
	}

	return slugFromURL(ri.URLInfo.Loc), nil
}

// Description returns the metadata description.
type Description struct{}

func (Description) Tags() []Tag { return []Tag{TagMetadata} }

func (Description) Extract(ri *domain.ResourceInfo) (any, error) {
	return metadataValue(ri, "description")
}

// Creator returns the metadata creator.
type Creator struct{}

func (Creator) Tags() []Tag { return []Tag{TagMetadata} }

func (Creator) Extract(ri *domain.ResourceInfo) (any, error) {
	return metadataValue(ri, "creator")
}

func metadataValue(ri *domain.ResourceInfo, key string) (any, error) {
	value, ok := ri.Metadata[key]
	if !ok {
		return nil, domain.ErrNoValueExtracted
	}
	return value, nil
}

// Keywords splits the metadata keywords on commas when any are present,
// else on whitespace. Elements are trimmed; empty ones dropped.
type Keywords struct{}

func (Keywords) Tags() []Tag { return []Tag{TagMetadata} }

func (Keywords) Extract(ri *domain.ResourceInfo) (any, error) {
	raw, ok := ri.Metadata["keywords"]
	if !ok {
		return nil, domain.ErrNoValueExtracted
	}

	var parts []string
	if strings.Contains(raw, ",") {
		parts = strings.Split(raw, ",")
	} else {
		parts = strings.Fields(raw)
	}

	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	return keywords, nil
}

// Filename returns the filename parameter of the Content-Disposition
// header.
type Filename struct{}

func (Filename) Tags() []Tag { return []Tag{TagHTTPHeader} }

func (Filename) Extract(ri *domain.ResourceInfo) (any, error) {
	name, err := filenameFromHeaders(ri)
	if err != nil {
		return nil, err
	}
	return name, nil
}

func filenameFromHeaders(ri *domain.ResourceInfo) (string, error) {
	disposition := ri.Header("Content-Disposition")
	if disposition == "" {
		return "", domain.ErrNoValueExtracted
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return "", domain.ErrNoValueExtracted
	}
	name := params["filename"]
	if name == "" {
		return "", domain.ErrNoValueExtracted
	}
	return strings.ToValidUTF8(name, "�"), nil
}

// LastModified resolves the document's modification time: the sitemap
// lastmod, else the Last-Modified header, else the indexing time. Always
// UTC.
type LastModified struct{}

func (LastModified) Tags() []Tag { return []Tag{TagURLInfo, TagHTTPHeader} }

func (LastModified) Extract(ri *domain.ResourceInfo) (any, error) {
	if t, ok := ri.URLInfo.LastmodTime(); ok {
		return t, nil
	}
	if header := ri.Header("Last-Modified"); header != "" {
		if t, err := utils.FromHTTPDatetime(header); err == nil {
			return t, nil
		}
	}
	return utils.ToUTC(time.Now()), nil
}

// IndexingTime returns the current time in UTC.
type IndexingTime struct{}

func (IndexingTime) Tags() []Tag { return []Tag{TagIndependent} }

func (IndexingTime) Extract(ri *domain.ResourceInfo) (any, error) {
	return utils.ToUTC(time.Now()), nil
}

// Constant returns a configured value verbatim. A nil value signals
// no-value so optional fields can be switched off per config.
type Constant struct {
	Value any
}

func (Constant) Tags() []Tag { return []Tag{TagIndependent} }

func (c Constant) Extract(ri *domain.ResourceInfo) (any, error) {
	if c.Value == nil {
		return nil, domain.ErrNoValueExtracted
	}
	return c.Value, nil
}

// SiteAttribute returns a value from the site's attribute bag.
type SiteAttribute struct {
	Attribute string
}

func (SiteAttribute) Tags() []Tag { return []Tag{TagSiteConfig} }

func (s SiteAttribute) Extract(ri *domain.ResourceInfo) (any, error) {
	if ri.Site == nil {
		return nil, domain.ErrNoValueExtracted
	}
	value, ok := ri.Site.Attribute(s.Attribute)
	if !ok {
		return nil, domain.ErrNoValueExtracted
	}
	return value, nil
}

// HeaderMapping maps a response header value through a lookup table.
// Content-Type values are charset-stripped before the lookup.
type HeaderMapping struct {
	Header  string
	Mapping map[string]any
	Default any
}

func (HeaderMapping) Tags() []Tag { return []Tag{TagHTTPHeader} }

func (h HeaderMapping) Extract(ri *domain.ResourceInfo) (any, error) {
	value := ri.Header(h.Header)
	if strings.EqualFold(h.Header, "content-type") {
		value = utils.GetContentType(value)
	}
	if value != "" {
		if mapped, ok := h.Mapping[value]; ok {
			return mapped, nil
		}
	}
	if h.Default != nil {
		return h.Default, nil
	}
	return nil, domain.ErrNoValueExtracted
}

// FieldMapping maps another field's extracted value through a lookup
// table. The peer is resolved by name through the owning set.
type FieldMapping struct {
	set     *Set
	field   string
	mapping map[string]any
	def     any
}

func (*FieldMapping) Tags() []Tag { return []Tag{TagIndependent} }

func (f *FieldMapping) Extract(ri *domain.ResourceInfo) (any, error) {
	source, err := f.set.extractorFor(f.field)
	if err != nil {
		return nil, err
	}

	value, err := source.Extract(ri)
	if err != nil && !errors.Is(err, domain.ErrNoValueExtracted) {
		return nil, err
	}
	if err == nil && value != nil {
		if mapped, ok := f.mapping[fmt.Sprint(value)]; ok {
			return mapped, nil
		}
	}

	if f.def != nil {
		return f.def, nil
	}
	return nil, domain.ErrNoValueExtracted
}

// XPath evaluates a location expression against the downloaded markup and
// returns the first matching node's text. Non-markup resources yield no
// value.
type XPath struct {
	Expression string

	compiled *xpath.Expr
	log      *utils.Logger
}

// NewXPath compiles the expression, so invalid ones fail at configuration
// time.
func NewXPath(expression string, log *utils.Logger) (*XPath, error) {
	compiled, err := xpath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid location expression %q: %w", expression, err)
	}
	return &XPath{Expression: expression, compiled: compiled, log: log}, nil
}

func (*XPath) Tags() []Tag { return []Tag{TagMarkupText} }

func (x *XPath) Extract(ri *domain.ResourceInfo) (any, error) {
	if ri.Filename == "" || !markup.IsMarkup(ri.ContentType) {
		return nil, domain.ErrNoValueExtracted
	}

	doc, err := markup.ParseFile(ri.Filename, ri.ContentType)
	if err != nil {
		return nil, err
	}
	texts := markup.QueryCompiled(doc, x.compiled)
	if len(texts) == 0 {
		return nil, domain.ErrNoValueExtracted
	}
	if len(texts) > 1 && x.log != nil {
		x.log.Debug().
			Str("expression", x.Expression).
			Int("matches", len(texts)).
			Str("url", ri.URLInfo.Loc).
			Msg("location expression matched several nodes, using the first")
	}
	return strings.TrimSpace(texts[0]), nil
}

// SnippetText returns the plain text with the document title stripped off
// the front, so search snippets do not repeat the title line.
type SnippetText struct{}

func (SnippetText) Tags() []Tag {
	return []Tag{TagText, TagMetadata, TagHTTPHeader, TagURLInfo}
}

func (SnippetText) Extract(ri *domain.ResourceInfo) (any, error) {
	text := utils.NormalizeWhitespace(ri.Text)

	title, err := extractTitle(ri)
	if err != nil {
		return text, nil
	}
	title = utils.NormalizeWhitespace(title)
	if title != "" && strings.HasPrefix(text, title) {
		text = strings.TrimSpace(strings.TrimPrefix(text, title))
	}
	return text, nil
}
