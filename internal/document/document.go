// Package document renders invoices and cover letters from embedded HTML
// templates. Rendering is opaque to the billing core: callers get bytes
// and hand them to storage.
package document

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Letterhead is the practice block printed on every document.
type Letterhead struct {
	Name     string
	Street   string
	City     string
	Phone    string
	Email    string
	IBAN     string
	BIC      string
	BankName string
	TaxID    string
}

// RecipientBlock is the addressed-to block of a document.
type RecipientBlock struct {
	Name        string
	Street      string
	HouseNumber string
	PostalCode  string
	City        string
}

// LineVM is one rendered invoice position.
type LineVM struct {
	Code        string
	Description string
	Amount      string
}

// InvoiceVM is the view model for a rendered invoice.
type InvoiceVM struct {
	Letterhead  Letterhead
	Recipient   RecipientBlock
	OrderNumber int64
	Version     int32
	Kind        string
	InvoiceDate string
	PatientName string
	DeathDate   string
	Lines       []LineVM
	Total       string
	Remark      string
}

// CoverLetterVM is the view model for the condolence cover letter that
// accompanies postal invoices sent to relatives.
type CoverLetterVM struct {
	Letterhead  Letterhead
	Recipient   RecipientBlock
	OrderNumber int64
	Date        string
	PatientName string
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse document templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) RenderInvoice(vm InvoiceVM) ([]byte, error) {
	return r.render("invoice.html", vm)
}

func (r *Renderer) RenderCoverLetter(vm CoverLetterVM) ([]byte, error) {
	return r.render("cover_letter.html", vm)
}

func (r *Renderer) render(name string, vm interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, vm); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
