package generation

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

const systemPrompt = `You are a senior consultant who writes persuasive, well structured business proposals.
Answer with the proposal document only, formatted as semantic HTML without <html> or <body> wrappers.`

var proposalPrompt = template.Must(template.New("proposal").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`Write a business proposal{{with .Title}} titled "{{.}}"{{end}}.

Project: {{or .Details.ProjectName "untitled project"}}
Client: {{.Details.ClientName}}{{with .Details.ClientCompany}} ({{.}}){{end}}
{{- with .Details.Services}}
Services: {{join . ", "}}{{end}}
{{- with .Details.Budget}}
Budget: {{.}}{{end}}
{{- with .Details.StartDate}}
Start date: {{.}}{{end}}
{{- with .Details.EndDate}}
End date: {{.}}{{end}}
{{- with .Details.Timeline}}
Timeline: {{.}}{{end}}
{{- if or .Details.PrimaryColor .Details.SecondaryColor}}
Brand colours: primary {{or .Details.PrimaryColor "unspecified"}}, secondary {{or .Details.SecondaryColor "unspecified"}}{{end}}
{{- with .Details.LogoURL}}
Logo: {{.}}{{end}}
Language: {{or .Details.Language "English"}}
Tone: {{or .Details.Tone "professional"}}

Structure the proposal with an executive summary, understanding of the client's needs,
proposed approach and deliverables, timeline, investment, and next steps.

Meeting notes:
{{.Details.MeetingNotes}}
`))

// RenderPrompt renders the user prompt for req.
func RenderPrompt(req Request) (string, error) {
	var buf bytes.Buffer
	if err := proposalPrompt.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("generation: render prompt: %w", err)
	}
	return buf.String(), nil
}
