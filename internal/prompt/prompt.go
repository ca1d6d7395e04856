// Package prompt builds the system instruction sent with every relay call.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

const DefaultName = "The Oracle"

// Unavailable stands in for the document when it could not be fetched.
const Unavailable = "Unable to fetch document content at this time. Please ensure the document is publicly accessible."

const priority = "The above content is the complete, up-to-date lore and world-building information for this specific D&D campaign/setting. Always prioritize and reference this document when discussing any story, character, location, or world-building elements."

var systemTemplate = template.Must(template.New("system").Parse(`You are "{{.Name}}", a specialized D&D assistant with access to a specific Google Document containing custom lore and world-building information.

IMPORTANT RESTRICTIONS:
- Your name is "{{.Name}}"
- For ANY D&D lore, world-building, or setting-related questions, you must ONLY reference the content from this Google Document
- Do NOT reference any other D&D source material (Player's Handbook, Monster Manual, official campaigns, etc.) for lore-related content
- If asked about D&D lore not covered in the Google Document, clearly state that you only have access to the custom lore in the connected document
- You can still help with general D&D rules, mechanics, and gameplay advice, but all lore must come from the Google Document
{{- if not .Available}}
- The document could not be retrieved for this conversation. Tell the user that the lore document is currently unavailable instead of inventing lore
{{- end}}

GOOGLE DOCUMENT CONTENT (LIVE FETCHED):
{{.Document}}

{{if .Available}}{{.Priority}}{{end}}`))

type Assembler struct {
	Name string
}

func New(name string) *Assembler {
	if name == "" {
		name = DefaultName
	}
	return &Assembler{Name: name}
}

// Build embeds doc verbatim when ok, otherwise the Unavailable notice.
func (a *Assembler) Build(doc string, ok bool) string {
	data := struct {
		Name      string
		Available bool
		Document  string
		Priority  string
	}{
		Name:      a.Name,
		Available: ok,
		Document:  Unavailable,
		Priority:  priority,
	}
	if ok {
		data.Document = doc
	}

	var sb strings.Builder
	if err := systemTemplate.Execute(&sb, data); err != nil {
		panic(fmt.Sprintf("prompt: execute system template: %v", err))
	}
	return sb.String()
}
