package mobi

import (
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// MetaKey names a metadata field.
type MetaKey int

const (
	Title MetaKey = iota
	Author
	Description
	Subject
	Copyright
)

func (k MetaKey) String() string {
	switch k {
	case Title:
		return "title"
	case Author:
		return "author"
	case Description:
		return "description"
	case Subject:
		return "subject"
	case Copyright:
		return "copyright"
	default:
		return "unknown"
	}
}

// MetaKeys lists every metadata key in display order.
var MetaKeys = []MetaKey{Title, Author, Description, Subject, Copyright}

// exthMetaKeys maps EXTH record types to metadata keys.
var exthMetaKeys = map[uint32]MetaKey{
	EXTHAuthor:      Author,
	EXTHDescription: Description,
	EXTHSubject:     Subject,
	EXTHRights:      Copyright,
}

// htmlHeadThreshold is the number of metadata fields below which the
// beginning of the text is scanned for Dublin Core tags.
const htmlHeadThreshold = 2

// htmlHeadPatterns are matched against the first text record.
var htmlHeadPatterns = map[MetaKey]*regexp.Regexp{
	Title:       regexp.MustCompile(`(?is)<dc:title.*?>(.*?)</dc:title>`),
	Author:      regexp.MustCompile(`(?is)<dc:creator.*?>(.*?)</dc:creator>`),
	Copyright:   regexp.MustCompile(`(?is)<dc:rights.*?>(.*?)</dc:rights>`),
	Subject:     regexp.MustCompile(`(?is)<dc:subject.*?>(.*?)</dc:subject>`),
	Description: regexp.MustCompile(`(?is)<dc:description.*?>(.*?)</dc:description>`),
}

// scanHTMLHead fills keys missing from meta with Dublin Core values found in text.
func scanHTMLHead(meta map[MetaKey]string, text string) {
	for _, key := range MetaKeys {
		if _, ok := meta[key]; ok {
			continue
		}
		if m := htmlHeadPatterns[key].FindStringSubmatch(text); m != nil {
			meta[key] = m[1]
		}
	}
}

// decodeString converts raw bytes to a Go string using the book's encoding.
// Non-UTF-8 books are decoded as Latin-1.
func decodeString(data []byte, utf8 bool) string {
	if utf8 {
		return strings.ToValidUTF8(string(data), "�")
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}
