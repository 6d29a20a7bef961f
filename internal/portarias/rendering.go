package portarias

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"docs-cataguases/portal-backend/internal/users"
	"docs-cataguases/portal-backend/pkg/pdf"
	"docs-cataguases/portal-backend/pkg/security"
	"docs-cataguases/portal-backend/pkg/storage"
)

// RenderStage tells which half of the pipeline failed.
type RenderStage string

const (
	StageGeneration RenderStage = "generation"
	StageUpload     RenderStage = "upload"
)

// RenderError is returned by a Renderer.
type RenderError struct {
	Stage RenderStage
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage of err, defaulting to generation.
func StageOf(err error) RenderStage {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Stage
	}
	return StageGeneration
}

// RenderInput is everything a rendition depends on.
type RenderInput struct {
	Portaria *Portaria
	Modelo   *Modelo
	// Signer is set when rendering the signed version.
	Signer   *users.User
	SignedAt time.Time
}

// RenderResult points at the stored artifact.
type RenderResult struct {
	PDFKey string
	Hash   string
	Size   int
}

// Renderer turns a portaria into a stored PDF.
type Renderer interface {
	Render(ctx context.Context, in RenderInput) (*RenderResult, error)
	// Discard removes a rendition whose transaction did not commit.
	Discard(ctx context.Context, key string) error
}

// RenderRecorder observes render durations.
type RenderRecorder interface {
	RenderObserved(d time.Duration)
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Placeholders lists the distinct variable names used in content, sorted.
func Placeholders(content string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// FillTemplate replaces every {{name}} with its value. Unknown names become
// empty strings.
func FillTemplate(content string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		return values[name]
	})
}

// TemplateValues merges the form data with the built-in variables.
func TemplateValues(p *Portaria, when time.Time) map[string]string {
	values := make(map[string]string, len(p.DadosFormulario)+4)
	for k, v := range p.DadosFormulario {
		if v == nil {
			continue
		}
		values[k] = fmt.Sprint(v)
	}
	values["titulo"] = p.Titulo
	values["secretaria"] = p.SecretariaID
	values["data"] = when.Format("02/01/2006")
	if p.Numbered() {
		values["numero"] = *p.NumeroOficial
	}
	return values
}

// PDFRenderer renders with pkg/pdf and stores the result with pkg/storage.
type PDFRenderer struct {
	generator   pdf.Generator
	storage     storage.Client
	headerLines []string
	recorder    RenderRecorder
	now         func() time.Time
}

func NewPDFRenderer(generator pdf.Generator, client storage.Client, municipio string, headerLines []string) *PDFRenderer {
	lines := append([]string{}, headerLines...)
	if municipio != "" {
		lines = append([]string{municipio}, lines...)
	}
	return &PDFRenderer{
		generator:   generator,
		storage:     client,
		headerLines: lines,
		now:         time.Now,
	}
}

// WithRecorder sets the duration recorder and returns the renderer.
func (r *PDFRenderer) WithRecorder(rec RenderRecorder) *PDFRenderer {
	r.recorder = rec
	return r
}

func (r *PDFRenderer) Render(ctx context.Context, in RenderInput) (*RenderResult, error) {
	start := r.now()
	if r.recorder != nil {
		defer func() { r.recorder.RenderObserved(time.Since(start)) }()
	}

	p := in.Portaria
	if in.Modelo == nil {
		return nil, &RenderError{Stage: StageGeneration, Err: errors.New("template is missing")}
	}

	when := start
	if !in.SignedAt.IsZero() {
		when = in.SignedAt
	}
	body := FillTemplate(in.Modelo.Conteudo, TemplateValues(p, when))

	title := "PORTARIA"
	ano := when.Year()
	if p.Numbered() {
		title = "PORTARIA Nº " + *p.NumeroOficial
		if p.AnoNumeracao > 0 {
			ano = p.AnoNumeracao
		}
	}

	doc := pdf.Document{
		HeaderLines: r.headerLines,
		Title:       title,
		Subtitle:    p.Titulo,
		Body:        body,
		Footer:      fmt.Sprintf("Documento %s", p.ID),
	}
	if in.Signer != nil {
		doc.Signature = []string{
			in.Signer.Nome,
			"Assinado eletronicamente em " + in.SignedAt.Format("02/01/2006 15:04"),
		}
	}

	data, err := r.generator.Generate(ctx, doc)
	if err != nil {
		return nil, &RenderError{Stage: StageGeneration, Err: err}
	}

	hash := security.HashBytes(data)
	key := GenerateS3Key(p, hash, ano)
	metadata := map[string]string{
		"checksum-sha256": hash,
		"portaria-id":     p.ID.String(),
	}
	if err := r.storage.Upload(ctx, key, bytes.NewReader(data), "application/pdf", metadata); err != nil {
		return nil, &RenderError{Stage: StageUpload, Err: err}
	}

	return &RenderResult{PDFKey: key, Hash: hash, Size: len(data)}, nil
}

func (r *PDFRenderer) Discard(ctx context.Context, key string) error {
	return r.storage.Delete(ctx, key)
}

var builtinVariables = map[string]bool{"titulo": true, "secretaria": true, "data": true, "numero": true}

// DeclaredVariables lists the form fields a template needs. Built-in
// variables are filled at render time and never declared.
func DeclaredVariables(m *Modelo) []string {
	names := []string(m.Variaveis)
	if len(names) == 0 {
		names = Placeholders(m.Conteudo)
	}
	var out []string
	for _, name := range names {
		if !builtinVariables[name] {
			out = append(out, name)
		}
	}
	return out
}

// missingVariables returns the declared variables absent from data.
func missingVariables(declared []string, data map[string]interface{}) []string {
	var missing []string
	for _, name := range declared {
		v, ok := data[name]
		if !ok || v == nil || strings.TrimSpace(fmt.Sprint(v)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
