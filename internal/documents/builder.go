package documents

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

//go:embed templates/*.html
var templateFS embed.FS

// ErrUnknownTemplate is returned for agreement templates with no layout.
var ErrUnknownTemplate = errors.New("unknown document template")

// Document is a fully resolved HTML page ready for the renderer.
type Document struct {
	HTML string
	// Kind names the stored object, e.g. "resume" or "agreement_rental".
	Kind string
	// Filename is the download name without extension.
	Filename string
}

type layout struct {
	file  string
	kind  string
	label string
	// nameKeys are tried in order to personalise the download name.
	nameKeys []string
}

var layouts = map[enums.ServiceKind]layout{
	enums.ServiceKindCVWriting:    {file: "resume.html", kind: "resume", label: "Resume", nameKeys: []string{"full_name"}},
	enums.ServiceKindResumeDesign: {file: "resume.html", kind: "resume", label: "Resume", nameKeys: []string{"full_name"}},
	enums.ServiceKindCoverLetter:  {file: "cover_letter.html", kind: "cover_letter", label: "Cover_Letter", nameKeys: []string{"full_name"}},
}

var agreementLayouts = map[string]layout{
	"employment": {file: "agreement_employment.html", kind: "agreement_employment", label: "Employment_Agreement", nameKeys: []string{"employee_name", "employer_name"}},
	"rental":     {file: "agreement_rental.html", kind: "agreement_rental", label: "Rental_Agreement", nameKeys: []string{"tenant_name", "landlord_name"}},
	"service":    {file: "agreement_service.html", kind: "agreement_service", label: "Service_Agreement", nameKeys: []string{"client_name", "provider_name"}},
}

// Builder resolves service types and form data into HTML documents.
type Builder struct {
	templates *template.Template
	now       func() time.Time
}

func NewBuilder() (*Builder, error) {
	tmpl, err := template.New("documents").Funcs(funcMap()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse document templates: %w", err)
	}
	return &Builder{templates: tmpl, now: time.Now}, nil
}

func (b *Builder) Build(st enums.ServiceType, form models.FormData) (*Document, error) {
	l, err := resolveLayout(st)
	if err != nil {
		return nil, err
	}
	if form == nil {
		form = models.FormData{}
	}

	data := struct {
		Form models.FormData
		Date string
	}{
		Form: form,
		Date: b.now().Format("2 January 2006"),
	}

	var buf bytes.Buffer
	if err := b.templates.ExecuteTemplate(&buf, l.file, data); err != nil {
		return nil, fmt.Errorf("execute %s: %w", l.file, err)
	}

	return &Document{
		HTML:     buf.String(),
		Kind:     l.kind,
		Filename: filename(l, form),
	}, nil
}

// Filename returns the download name Build would produce, without rendering.
func (b *Builder) Filename(st enums.ServiceType, form models.FormData) (string, error) {
	l, err := resolveLayout(st)
	if err != nil {
		return "", err
	}
	return filename(l, form), nil
}

func resolveLayout(st enums.ServiceType) (layout, error) {
	if st.Kind == enums.ServiceKindAgreement {
		l, ok := agreementLayouts[st.Template]
		if !ok {
			return layout{}, fmt.Errorf("%w: agreement %q", ErrUnknownTemplate, st.Template)
		}
		return l, nil
	}
	l, ok := layouts[st.Kind]
	if !ok {
		return layout{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, st.Kind)
	}
	return l, nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9]+`)

func filename(l layout, form models.FormData) string {
	for _, key := range l.nameKeys {
		name := strings.Trim(unsafeFilename.ReplaceAllString(field(form, key), "_"), "_")
		if name != "" {
			return name + "_" + l.label
		}
	}
	return l.label
}
