package upload

import (
	"path"
	"strings"
)

// MaxArtifactNameLength is the longest stored name, in bytes. It fits a
// single path component on common filesystems and the file_name column.
const MaxArtifactNameLength = 255

// SanitizeFilename replaces every rune outside [A-Za-z0-9._-] with '_'.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ArtifactName derives the stored name of an artifact. It is pure, so a
// manual retry of the same file lands on the same name. Both parts are
// sanitised; an over-long filename loses the end of its stem but keeps its
// extension.
func ArtifactName(examinationID, filename string) string {
	prefix := SanitizeFilename(examinationID) + "_"
	if len(prefix) >= MaxArtifactNameLength {
		return prefix[:MaxArtifactNameLength]
	}
	name := SanitizeFilename(baseName(filename))
	if room := MaxArtifactNameLength - len(prefix); len(name) > room {
		name = truncateStem(name, room)
	}
	return prefix + name
}

// baseName strips client directories, which browsers on Windows send with
// backslashes.
func baseName(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		return filename[i+1:]
	}
	return filename
}

// truncateStem shortens an ASCII name to max bytes, keeping the extension
// when it fits.
func truncateStem(name string, max int) string {
	ext := path.Ext(name)
	if len(ext) >= max {
		return name[:max]
	}
	return name[:max-len(ext)] + ext
}
