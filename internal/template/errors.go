package template

import "fmt"

// LoadError reports a template that is itself malformed: unreadable file,
// invalid JSON, companion-schema failure, or internal inconsistency. It is
// distinct from dataset violations and aborts a run before any scanning.
type LoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template load error: %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("template load error: %s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// NotFoundError reports that no template matched the requested id/version in
// any search directory.
type NotFoundError struct {
	TemplateID string
	Version    string
	Dirs       []string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("template %q version %q not found in %v", e.TemplateID, e.Version, e.Dirs)
	}
	return fmt.Sprintf("template %q not found in %v", e.TemplateID, e.Dirs)
}
