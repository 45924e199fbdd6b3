package answer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Listing limits for multi-value answers.
const (
	MaxListItems = 20
	MaxListChars = 400
	listSep      = ", "
)

// JoinListing joins items with ", ". A single item is returned whole; longer
// listings stop at the last item that fits both limits and note how many
// were left out.
func JoinListing(items []string, locale Locale) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	var b strings.Builder
	chars, kept := 0, 0
	for _, it := range items {
		n := utf8.RuneCountInString(it)
		if kept > 0 {
			n += len(listSep)
		}
		if kept == MaxListItems || (kept > 0 && chars+n > MaxListChars) {
			break
		}
		if kept > 0 {
			b.WriteString(listSep)
		}
		b.WriteString(it)
		chars += n
		kept++
	}
	if kept == len(items) {
		return b.String()
	}
	return b.String() + locale.moreSuffix(len(items)-kept)
}

func (l Locale) moreSuffix(n int) string {
	if l == LocaleEN {
		return fmt.Sprintf("... (and %d more)", n)
	}
	return fmt.Sprintf("... (외 %d개 항목)", n)
}
