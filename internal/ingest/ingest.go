// Package ingest turns an uploaded file into a typed dataset. The file's real format is taken
// from its bytes; the extension only has to agree with it.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/kiranshivaraju/marketpulse/internal/dataset"
)

var (
	ErrFileNotFound        = errors.New("file not found")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyDataset        = errors.New("empty dataset")
)

// FileType is one of the accepted upload formats.
type FileType string

const (
	TypeCSV  FileType = "csv"
	TypeXLS  FileType = "xls"
	TypeXLSX FileType = "xlsx"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeXLS  = "application/vnd.ms-excel"
)

// Load reads the file at path into a dataset. originalFilename supplies the claimed
// extension. The file is never modified.
func Load(path, originalFilename string) (*dataset.Dataset, FileType, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, "", fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	if info.Size() == 0 {
		return nil, "", fmt.Errorf("%w: %s has no content", ErrEmptyDataset, originalFilename)
	}

	ft, err := DetectType(path, originalFilename)
	if err != nil {
		return nil, "", err
	}

	var headers []string
	var records [][]string
	switch ft {
	case TypeCSV:
		headers, records, err = readCSV(path)
	case TypeXLSX:
		headers, records, err = readXLSX(path)
	case TypeXLS:
		headers, records, err = readXLS(path)
	}
	if err != nil {
		return nil, ft, err
	}

	if len(headers) == 0 || len(records) == 0 {
		return nil, ft, fmt.Errorf("%w: %s has no data rows", ErrEmptyDataset, originalFilename)
	}
	return dataset.FromRecords(headers, records), ft, nil
}

// DetectType sniffs the file content and reconciles it with the claimed extension.
func DetectType(path, originalFilename string) (FileType, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}

	switch ext {
	case ".csv":
		// Single-column or oddly delimited CSV is reported as plain text, and a few lines of
		// prose with one comma each are reported as CSV. Both are settled by the header.
		sniffedCSV := mime.Is("text/csv") || mime.Is("text/tab-separated-values")
		if (sniffedCSV || isText(mime)) && looksTabular(path, sniffedCSV) {
			return TypeCSV, nil
		}
	case ".xlsx":
		if mime.Is(mimeXLSX) {
			return TypeXLSX, nil
		}
	case ".xls":
		if mime.Is(mimeXLS) {
			return TypeXLS, nil
		}
	default:
		return "", fmt.Errorf("%w: extension %q is not one of .csv, .xls, .xlsx (detected %s)",
			ErrUnsupportedFileType, ext, mime.String())
	}

	return "", fmt.Errorf("%w: %s content detected as %s does not match its extension",
		ErrUnsupportedFileType, originalFilename, mime.String())
}

func isText(m *mimetype.MIME) bool {
	for p := m; p != nil; p = p.Parent() {
		if p.Is("text/plain") {
			return true
		}
	}
	return false
}
