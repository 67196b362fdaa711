// Package export writes contact lists as JSON, YAML or XLSX.
package export

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/prospect-cli/internal/model"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatXLSX = "xlsx"
)

// SheetName is the worksheet written by the XLSX format.
const SheetName = "Contacts"

// Header is the column order of tabular output.
var Header = []string{"name", "title", "email", "company", "domain", "location", "email_status"}

// Formats lists the accepted format names.
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatXLSX}
}

// Write renders contacts to w in the named format.
func Write(w io.Writer, format string, contacts []model.Contact) error {
	if contacts == nil {
		contacts = []model.Contact{}
	}
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return WriteJSON(w, contacts)
	case FormatYAML, "yml":
		return writeYAML(w, contacts)
	case FormatXLSX:
		return writeXLSX(w, contacts)
	default:
		return eris.Errorf("export: unknown format %q (want one of %s)", format, strings.Join(Formats(), ", "))
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "export: encode json")
}

func writeYAML(w io.Writer, contacts []model.Contact) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(contacts); err != nil {
		return eris.Wrap(err, "export: encode yaml")
	}
	return eris.Wrap(enc.Close(), "export: close yaml encoder")
}

func writeXLSX(w io.Writer, contacts []model.Contact) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addRow(sheet, Header)
	for _, c := range contacts {
		addRow(sheet, Row(c))
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}

// Row returns the tabular cells of c in Header order.
func Row(c model.Contact) []string {
	return []string{c.Name, c.Title, c.Email, c.Company, c.Domain, c.Location, c.EmailStatus}
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}
