// Package assets provides the embedded prompt templates for the analysis.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time so they can be edited without touching Go code.
package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

// DescribeImagePrompt instructs the model to describe a screenshot's
// structure, visible text, technical artifacts and behavioural cues without
// speculating beyond what is visible.
//
//go:embed prompts/describe-image.txt
var DescribeImagePrompt string

//go:embed prompts/security-report.txt
var securityReportTemplate string

// Pre-parsed template. template.Must panics on a malformed template,
// catching errors at program startup rather than at call time.
var reportPromptTmpl = template.Must(template.New("report").Parse(securityReportTemplate))

// ReportPromptData holds the dynamic data injected into the report prompt.
type ReportPromptData struct {
	// Description is the first model call's output, embedded verbatim.
	Description string
	// Language is the natural language the report must be written in.
	Language string
}

// RenderReportPrompt renders the vulnerability/test-case prompt around the
// interface description.
func RenderReportPrompt(description, language string) (string, error) {
	return render(reportPromptTmpl, ReportPromptData{
		Description: description,
		Language:    language,
	})
}

// render executes tmpl. text/template does no escaping, so the description
// lands byte for byte.
func render(tmpl *template.Template, data ReportPromptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
