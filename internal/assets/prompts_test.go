package assets

import (
	"strings"
	"testing"
	"text/template"
)

func TestDescribeImagePromptEmbedded(t *testing.T) {
	if strings.TrimSpace(DescribeImagePrompt) == "" {
		t.Fatal("describe-image prompt is empty")
	}
	for _, want := range []string{"visible", "Visible technical information", "Apparent behaviour"} {
		if !strings.Contains(DescribeImagePrompt, want) {
			t.Errorf("describe-image prompt missing %q", want)
		}
	}
}

func TestRenderReportPromptEmbedsDescriptionVerbatim(t *testing.T) {
	desc := "A login form with username and password fields.\n<b>{{not a template}}</b> & \"quotes\""
	got, err := RenderReportPrompt(desc, "English")
	if err != nil {
		t.Fatalf("RenderReportPrompt() error = %v", err)
	}

	if !strings.Contains(got, desc) {
		t.Errorf("rendered prompt does not contain description verbatim:\n%s", got)
	}
	if !strings.Contains(got, "write the whole answer in English") {
		t.Error("rendered prompt missing language instruction")
	}
	if !strings.HasSuffix(strings.TrimSpace(got), strings.TrimSpace(desc)) {
		t.Error("description should close the prompt")
	}
}

func TestRenderReportPromptTemplateSections(t *testing.T) {
	got, err := RenderReportPrompt("", "English")
	if err != nil {
		t.Fatalf("RenderReportPrompt() error = %v", err)
	}
	for _, want := range []string{
		"Location of the flaw",
		"Attack vector",
		"Potential impact",
		"Mitigation and fix",
		"at least 2 tests",
		"Expected result (vulnerable)",
		"Expected result (after fix)",
		"Markdown H2",
		"Markdown H3",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report prompt missing %q", want)
		}
	}
}

func TestRenderReturnsExecutionError(t *testing.T) {
	tmpl := template.Must(template.New("broken").Parse("{{.Missing}}"))
	got, err := render(tmpl, ReportPromptData{Description: "d"})
	if err == nil {
		t.Fatal("expected an execution error")
	}
	if got != "" {
		t.Errorf("expected no partial output, got %q", got)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("expected template name in error, got %v", err)
	}
}
