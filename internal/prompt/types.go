package prompt

import (
	"errors"
	"fmt"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
)

// PromptType identifies the task a prompt asks the model to perform.
type PromptType string

const (
	// TypeExplain asks what the finding means and whether it is likely to
	// matter. It is the default for the ollama alert channel.
	TypeExplain PromptType = "explain"

	// TypeRemediate asks for concrete next steps for an operator.
	TypeRemediate PromptType = "remediate"
)

// ParsePromptType converts a configured name to a PromptType, defaulting to
// TypeExplain.
func ParsePromptType(s string) PromptType {
	if PromptType(s) == TypeRemediate {
		return TypeRemediate
	}
	return TypeExplain
}

// BuildOptions holds the context for one prompt.
type BuildOptions struct {
	// Finding is the alert to explain. Rule is required.
	Finding anomaly.Finding

	// Files lists the inputs of the run the finding came from.
	// Optional: included as context when non-empty.
	Files []string

	// TimeRange describes the --since/--until window, if any.
	TimeRange string
}

// ErrMissingField is returned by [Build] when a required field is absent.
var ErrMissingField = errors.New("prompt: missing required field")

func missingField(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}
