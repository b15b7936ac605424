// Package export renders the book list as a CSV download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lucidlyapp/lucidly/internal/domain"
)

// ContentType is the MIME type of the export.
const ContentType = "text/csv;charset=utf-8;"

// Header is the first row of every export.
var Header = []string{"Title", "Author", "Status", "Date Started", "Date Completed", "Intention", "Notes"}

// Escape quotes a field that contains a comma, a double quote or a newline,
// doubling embedded quotes. Other fields are returned unchanged.
//
// encoding/csv also quotes fields with carriage returns or leading spaces,
// which would change the bytes of existing exports, so the rule is applied by hand.
func Escape(field string) string {
	if !strings.ContainsAny(field, ",\"\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// Row returns the CSV fields of one book. Missing values are empty.
func Row(b domain.Book) []string {
	return []string{
		b.Title,
		b.Author,
		string(b.Status),
		b.DateStarted.String(),
		b.DateCompleted.String(),
		b.Intention,
		b.Notes,
	}
}

// Write writes the header and one row per book, in list order. Rows are
// separated by "\n" with no trailing newline.
func Write(w io.Writer, books []domain.Book) error {
	lines := make([]string, 0, len(books)+1)
	lines = append(lines, strings.Join(Header, ","))
	for _, b := range books {
		fields := Row(b)
		for i, f := range fields {
			fields[i] = Escape(f)
		}
		lines = append(lines, strings.Join(fields, ","))
	}
	if _, err := io.WriteString(w, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Bytes renders the export in memory.
func Bytes(books []domain.Book) []byte {
	var b strings.Builder
	_ = Write(&b, books) // strings.Builder never fails
	return []byte(b.String())
}

// Filename returns the download name for an export made at now, using the UTC date.
func Filename(now time.Time) string {
	return "lucidly-export-" + now.UTC().Format(domain.DateLayout) + ".csv"
}

// Parse reads an export back into records, header included.
func Parse(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}
