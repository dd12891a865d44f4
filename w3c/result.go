package w3c

import "regexp"

// Result is the outcome of validating one HTML document.
type Result struct {
	// Valid reports whether the document passed validation.
	Valid bool
	// Message is the whitespace-normalized inner HTML of the verdict
	// heading. It may contain inline markup and is meant to be rendered
	// as HTML, not as plain text.
	Message string
	// Page is the complete validator result page with its relative
	// references already rewritten, suitable for serving verbatim.
	Page string
}

// The verdict heading on a result page. The search is not anchored and the
// heading content may span line breaks.
var verdictPattern = regexp.MustCompile(`(?s)<h2[^>]+class="(valid|invalid)">(.*?)</h2>`)

// ParseResult extracts the verdict from a validator result page. The first
// verdict heading decides; a page without one yields a
// *MalformedResponseError.
func ParseResult(page string) (*Result, error) {
	m := verdictPattern.FindStringSubmatch(page)
	if m == nil {
		return nil, &MalformedResponseError{Page: page}
	}
	return &Result{
		Valid:   m[1] == "valid",
		Message: NormalizeSpace(m[2]),
		Page:    page,
	}, nil
}
