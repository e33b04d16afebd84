package upload

import (
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// sniffLen matches mimetype's default read limit.
const sniffLen = 3072

// Container formats spreadsheets are stored in.
const (
	typeZIP = "application/zip"
	typeOLE = "application/x-ole-storage"
)

// Sniff detects the payload type from its leading bytes and rejects it when
// neither the detected type nor any of its parents is in p.SniffTypes.
func Sniff(body io.ReaderAt, p Policy) (string, error) {
	detected, err := sniff(body, p)
	if detected == nil {
		return "", err
	}
	return detected.String(), err
}

func sniff(body io.ReaderAt, p Policy) (*mimetype.MIME, error) {
	head := make([]byte, sniffLen)
	n, err := body.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read payload head: %w", err)
	}

	detected := mimetype.Detect(head[:n])
	if !isA(detected, p.SniffTypes...) {
		return detected, fmt.Errorf("%w: content looks like %s", ErrInvalidType, detected.String())
	}
	return detected, nil
}

// isA reports whether m or one of its parents is any of types.
func isA(m *mimetype.MIME, types ...string) bool {
	for ; m != nil; m = m.Parent() {
		for _, t := range types {
			if m.Is(t) {
				return true
			}
		}
	}
	return false
}

// InspectWorkbook opens an XLSX payload and requires at least one sheet.
func InspectWorkbook(body io.ReaderAt, size int64) error {
	f, err := excelize.OpenReader(io.NewSectionReader(body, 0, size))
	if err != nil {
		return fmt.Errorf("%w: not a readable workbook: %v", ErrInvalidType, err)
	}
	defer f.Close()

	if len(f.GetSheetList()) == 0 {
		return fmt.Errorf("%w: workbook has no sheets", ErrInvalidType)
	}
	return nil
}

// Inspect runs the content checks a policy asks for on a payload whose
// declared type already passed Validate. For workbook policies any ZIP
// container must open as a spreadsheet, whatever was declared, and an OLE
// container is only accepted as a legacy XLS file.
func Inspect(body io.ReaderAt, f *File, p Policy) error {
	detected, err := sniff(body, p)
	if err != nil || !p.Workbook {
		return err
	}

	declared := NormalizeType(f.ContentType)
	switch {
	case isA(detected, typeZIP):
		return InspectWorkbook(body, f.Size)
	case declared == TypeXLS && (detected.Is(TypeXLS) || detected.Is(typeOLE)):
		return nil
	default:
		return fmt.Errorf("%w: declared %s but content looks like %s", ErrInvalidType, declared, detected.String())
	}
}
