// Package document retrieves the plain-text export of a public Google Doc.
//
// Unavailability is an ordinary outcome here, not an error: callers get
// ("", false) and decide how to degrade.
package document

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/varsilias/oracle-chat/internal/tracer"
)

const userAgent = "Mozilla/5.0 (compatible; The-Oracle-Bot/1.0)"

var docIDPattern = regexp.MustCompile(`/document/d/([a-zA-Z0-9-_]+)`)

// ExtractID pulls the document id out of a docs URL. ok is false when the
// URL does not have the /document/d/<id> shape.
func ExtractID(url string) (id string, ok bool) {
	m := docIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

type Fetcher struct {
	exportBase string
	client     *http.Client
	log        *slog.Logger
}

func NewFetcher(exportBase string, client *http.Client, log *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		exportBase: strings.TrimRight(exportBase, "/"),
		client:     client,
		log:        log,
	}
}

func (f *Fetcher) ExportURL(id string) string {
	return fmt.Sprintf("%s/document/d/%s/export?format=txt", f.exportBase, id)
}

// FetchURL resolves the id from a document URL and fetches it.
func (f *Fetcher) FetchURL(ctx context.Context, url string) (string, bool) {
	id, ok := ExtractID(url)
	if !ok {
		f.log.Warn("document url has no id", "url", url)
		return "", false
	}
	return f.Fetch(ctx, id)
}

// Fetch makes a single attempt at the export; the body is read in full
// before success is reported.
func (f *Fetcher) Fetch(ctx context.Context, id string) (string, bool) {
	ctx, span := tracer.StartSpan(ctx, "document.fetch",
		trace.WithAttributes(tracer.StringAttr("document.id", id)),
	)
	defer span.End()

	text, err := f.fetch(ctx, id)
	if err != nil {
		tracer.RecordError(span, err)
		f.log.Warn("document unavailable", "id", id, "err", err)
		return "", false
	}
	span.SetAttributes(tracer.IntAttr("document.chars", len(text)))
	tracer.SetOK(span)
	f.log.Info("fetched document", "id", id, "chars", len(text))
	return text, true
}

func (f *Fetcher) fetch(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.ExportURL(id), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("export status: %s", res.Status)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", fmt.Errorf("document is empty")
	}
	return text, nil
}
