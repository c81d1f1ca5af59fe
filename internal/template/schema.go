package template

import _ "embed"

// companionSchema is the packaged JSON-Schema every template must satisfy
// before use. A copy lives at schemas/template.schema.json for external
// tooling; the CLI can substitute it via --template-schema.
//
//go:embed template.schema.json
var companionSchema []byte

// CompanionSchema exposes the packaged schema document, primarily so the CLI
// can validate template files without loading them.
func CompanionSchema() []byte {
	out := make([]byte, len(companionSchema))
	copy(out, companionSchema)
	return out
}
