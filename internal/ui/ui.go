package ui

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/varsilias/oracle-chat/internal/prompt"
	"github.com/varsilias/oracle-chat/internal/usage"
)

//go:embed web
var webFS embed.FS

// Page is what the chat page shows about this deployment.
type Page struct {
	Name        string
	Model       string
	DocumentURL string
}

type UI struct {
	log    *slog.Logger
	tpl    *template.Template
	md     goldmark.Markdown
	policy *bluemonday.Policy
	page   Page
	static fs.FS
}

func New(log *slog.Logger, page Page) (*UI, error) {
	if page.Name == "" {
		page.Name = prompt.DefaultName
	}

	t := template.New("root").Funcs(template.FuncMap{
		"modelLabel": modelLabel,
	})
	var err error
	if t, err = t.ParseFS(webFS, "web/templates/*.html"); err != nil {
		return nil, err
	}
	if t, err = t.ParseFS(webFS, "web/templates/partials/*.html"); err != nil {
		return nil, err
	}
	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		return nil, err
	}

	md := goldmark.New(
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("dracula"),
				highlighting.WithFormatOptions(
					chromahtml.WithLineNumbers(false),
				),
			),
		),
	)

	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("code", "pre", "span")
	p.AllowAttrs("style").OnElements("span", "pre")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &UI{
		log:    log,
		tpl:    t,
		md:     md,
		policy: p,
		page:   page,
		static: static,
	}, nil
}

// MsgView is one chat bubble. Assistant replies carry rendered HTML; user
// input is shown as plain Text.
type MsgView struct {
	Role string
	Name string
	Text string
	HTML template.HTML
}

// UsageView is the context bar's data.
type UsageView struct {
	Tokens  string
	Limit   string
	Cost    string
	Percent float64
	Level   usage.Level
	Model   string
}

func newUsageView(s usage.Snapshot, model string) UsageView {
	pct := usage.ContextPercentage(s.Tokens)
	return UsageView{
		Tokens:  usage.FormatTokens(s.Tokens),
		Limit:   usage.FormatTokens(usage.ContextLimit),
		Cost:    usage.FormatCost(s.Cost),
		Percent: pct,
		Level:   usage.LevelFor(pct),
		Model:   model,
	}
}

// RenderMarkdown converts an assistant reply to sanitized HTML.
func (u *UI) RenderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := u.md.Convert([]byte(src), &buf); err != nil {
		u.log.Warn("markdown convert", "err", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(u.policy.SanitizeBytes(buf.Bytes()))
}

func (u *UI) render(w http.ResponseWriter, name string, data any, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := u.tpl.ExecuteTemplate(w, name, data); err != nil {
		u.errTpl(w, err)
	}
}

func (u *UI) errTpl(w http.ResponseWriter, err error) {
	u.log.Error("template execute", "err", err)
	_, _ = w.Write([]byte("<pre>template error: " + template.HTMLEscapeString(err.Error()) + "</pre>"))
}

var modelLabels = map[string]string{
	"claude-3-5-sonnet-20241022": "Claude 3.5 Sonnet",
	"claude-3-5-sonnet-20240620": "Claude 3.5 Sonnet",
	"claude-3-5-haiku-20241022":  "Claude 3.5 Haiku",
}

func modelLabel(model string) string {
	if l, ok := modelLabels[model]; ok {
		return l
	}
	return model
}
