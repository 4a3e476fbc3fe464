package adk

import (
	_ "embed"
	"strings"
)

//go:embed prompts/covenant_extraction.md
var extractionPrompt string

// ExtractionPrompt returns the covenant extraction prompt with the agreement
// text filled in.
func ExtractionPrompt(document string) string {
	return strings.Replace(extractionPrompt, "{{document}}", document, 1)
}
