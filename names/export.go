package names

import (
	"strconv"
	"strings"
)

// invalidFileChars are replaced in exported file names.
const invalidFileChars = `<>:"/\|?*`

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(invalidFileChars, r) {
			return '_'
		}
		return r
	}, s)
}

// ExportFileName returns the file name under which an object is exported:
// "{name}-{archiveFile}-{pathID}.{ext}". Characters that are not valid in
// file names are replaced with underscores. The extension is omitted when
// ext is empty.
func ExportFileName(name, archiveFile string, pathID int64, ext string) string {
	var b strings.Builder
	b.WriteString(sanitize(name))
	b.WriteByte('-')
	b.WriteString(sanitize(archiveFile))
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(pathID, 10))
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		b.WriteByte('.')
		b.WriteString(sanitize(ext))
	}
	return b.String()
}
