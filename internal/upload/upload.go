// Package upload checks candidate artifacts before any I/O happens and
// derives the names they are stored under.
package upload

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/adonhq/assessment-backend/internal/model"
)

// MaxFileBytes is the inclusive size ceiling for every artifact (10 MiB).
const MaxFileBytes int64 = 10 * 1024 * 1024

// Media types accepted by the upload phases.
const (
	TypePNG  = "image/png"
	TypeJPEG = "image/jpeg"
	TypeJPG  = "image/jpg"
	TypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	TypeXLS  = "application/vnd.ms-excel"
)

// Sentinel errors, reported in validation order.
var (
	ErrMissingFile = errors.New("no file uploaded")
	ErrTooLarge    = errors.New("file too large")
	ErrInvalidType = errors.New("invalid file type")
)

// Policy is the per-phase acceptance rule for artifacts.
type Policy struct {
	MaxBytes int64
	// AllowedTypes are matched against the declared media type.
	AllowedTypes []string
	// SniffTypes are matched against the type detected from the leading
	// bytes, including its parent formats.
	SniffTypes []string
	// Workbook requires ZIP payloads to open as a spreadsheet and limits OLE
	// payloads to declared XLS.
	Workbook bool
	// Label names the accepted formats in user-facing messages.
	Label string
}

// PhaseThreePolicy accepts screenshots.
var PhaseThreePolicy = Policy{
	MaxBytes:     MaxFileBytes,
	AllowedTypes: []string{TypePNG, TypeJPEG, TypeJPG},
	SniffTypes:   []string{TypePNG, TypeJPEG},
	Label:        "PNG, JPEG, or JPG",
}

// PhaseFourPolicy accepts spreadsheets.
var PhaseFourPolicy = Policy{
	MaxBytes:     MaxFileBytes,
	AllowedTypes: []string{TypeXLSX, TypeXLS},
	SniffTypes:   []string{TypeXLSX, TypeXLS, "application/x-ole-storage", "application/zip"},
	Workbook:     true,
	Label:        "XLSX or XLS",
}

// PolicyFor returns the policy of an upload phase.
func PolicyFor(phase model.Phase) (Policy, bool) {
	switch phase {
	case model.PhaseThree:
		return PhaseThreePolicy, true
	case model.PhaseFour:
		return PhaseFourPolicy, true
	default:
		return Policy{}, false
	}
}

// File describes a candidate artifact as reported by the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
}

// Validate checks presence, then size, then declared type, and returns the
// first failure only.
func Validate(f *File, p Policy) error {
	if f == nil || f.Size <= 0 {
		return ErrMissingFile
	}

	limit := p.MaxBytes
	if limit <= 0 {
		limit = MaxFileBytes
	}
	if f.Size > limit {
		return fmt.Errorf("%w: %d bytes (max: %d)", ErrTooLarge, f.Size, limit)
	}

	declared := NormalizeType(f.ContentType)
	if !contains(p.AllowedTypes, declared) {
		return fmt.Errorf("%w: %q (allowed: %s)", ErrInvalidType, f.ContentType, strings.Join(p.AllowedTypes, ", "))
	}
	return nil
}

// NormalizeType lowercases a media type and strips its parameters.
func NormalizeType(contentType string) string {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		return parsed
	}
	return strings.ToLower(ct)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
