package config

import "errors"

// Sentinel errors for configuration loading
var (
	// ErrNoSites indicates the config defines no sites
	ErrNoSites = errors.New("config must define at least one site")

	// ErrEmptySiteURL indicates a site is missing its base URL
	ErrEmptySiteURL = errors.New("site url cannot be empty")

	// ErrSiteURLNotAbsolute indicates a site base URL is not absolute
	ErrSiteURLNotAbsolute = errors.New("site url must be an absolute http(s) URL")

	// ErrNoFields indicates the config defines no fields
	ErrNoFields = errors.New("config must define at least one field")

	// ErrEmptyFieldName indicates a field is missing its name
	ErrEmptyFieldName = errors.New("field name cannot be empty")

	// ErrDuplicateField indicates two fields share a name
	ErrDuplicateField = errors.New("duplicate field name")

	// ErrUnknownFieldType indicates a field declares an unrecognized type
	ErrUnknownFieldType = errors.New("unknown field type (use text, boolean, integer, or timestamp)")

	// ErrNoExtractor indicates a field names no extractor
	ErrNoExtractor = errors.New("field must name an extractor")

	// ErrExtractorUse indicates an extractor mapping without a "use" key
	ErrExtractorUse = errors.New("extractor mapping must carry a non-empty 'use' key")

	// ErrMissingFieldOption indicates unique_field, url_field, or
	// last_modified_field is unset
	ErrMissingFieldOption = errors.New("field option must be set")

	// ErrInvalidFormat indicates the config file is not valid YAML or JSON
	ErrInvalidFormat = errors.New("config must be valid YAML or JSON")

	// ErrFileNotFound indicates the config file does not exist
	ErrFileNotFound = errors.New("config file not found")

	// ErrUnsupportedExt indicates an unsupported file extension
	ErrUnsupportedExt = errors.New("unsupported file extension (use .yaml, .yml, or .json)")
)
