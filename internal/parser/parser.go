package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"geotech-rag/internal/models"
)

const pdfExt = ".pdf"

// FileError records a PDF that could not be extracted
type FileError struct {
	File string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

// ListPDFs returns the names of the .pdf files in dir, sorted. A missing
// directory is reported as an empty listing.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) == pdfExt {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ExtractPDF returns one Document per non-blank page, in page order. A file
// either yields all of its pages or an error.
func ExtractPDF(filePath string) (docs []models.Document, err error) {
	source := filepath.Base(filePath)
	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("failed to parse %s: %v", source, r)
		}
	}()

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", source, err)
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d of %s: %w", i, source, err)
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		docs = append(docs, models.Document{
			Content: pageText,
			Source:  source,
			Page:    i,
		})
	}
	return docs, nil
}

// ExtractAll extracts every file in paths. Files that fail are logged, reported
// in the returned slice and otherwise skipped.
func ExtractAll(paths []string) ([]models.Document, []FileError) {
	var docs []models.Document
	var failed []FileError
	for _, p := range paths {
		pageDocs, err := ExtractPDF(p)
		if err != nil {
			log.Warn().Err(err).Str("file", p).Msg("Could not read PDF, skipping")
			failed = append(failed, FileError{File: filepath.Base(p), Err: err})
			continue
		}
		log.Debug().Str("file", p).Int("pages", len(pageDocs)).Msg("Extracted PDF")
		docs = append(docs, pageDocs...)
	}
	return docs, failed
}
