// Package metadata maps the raw key/value set returned by the converter to
// canonical names. Converters emit Dublin Core keys under several prefix
// conventions; consumers only ever look up the canonical name.
package metadata

// canonicalMapping lists, per canonical name, the candidate keys in priority
// order. The first key present in the input wins.
var canonicalMapping = []struct {
	canonical  string
	candidates []string
}{
	{"title", []string{"dcterms:title", "dc:title", "DC.title", "title"}},
	{"created", []string{"dcterms:created", "meta:creation-date", "Creation-Date"}},
	{"description", []string{"dcterms:description", "dc:description", "DC.description", "description"}},
	{"keywords", []string{"dc:subject", "DC.subject", "keywords", "subject"}},
	{"creator", []string{"dcterms:creator", "dc:creator", "DC.creator", "creator", "author"}},
}

// Normalize returns a copy of the mapping with canonical aliases added.
// Original keys are preserved; canonical names with no candidate present are
// simply absent.
func Normalize(mapping map[string]string) map[string]string {
	normalized := make(map[string]string, len(mapping)+len(canonicalMapping))
	for key, value := range mapping {
		normalized[key] = value
	}

	for _, entry := range canonicalMapping {
		for _, candidate := range entry.candidates {
			if value, ok := mapping[candidate]; ok {
				normalized[entry.canonical] = value
				break
			}
		}
	}

	return normalized
}
