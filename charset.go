package markupcheck

import (
	"mime"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// charsetParam extracts the charset parameter from a Content-Type value.
func charsetParam(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// encoderFor returns an encoder for the named charset, or nil when output
// is UTF-8 (or the name is unknown) and bytes should pass through
// untouched. Runes outside the charset's repertoire are emitted as HTML
// numeric references instead of failing the write.
func encoderFor(name string) *encoding.Encoder {
	if name == "" || strings.EqualFold(name, "utf-8") {
		return nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil
	}
	return encoding.HTMLEscapeUnsupported(enc.NewEncoder())
}

// decodeCharset decodes raw from the named charset, treating it as UTF-8
// when the charset is unknown or the bytes do not decode.
func decodeCharset(raw []byte, name string) string {
	if name == "" || strings.EqualFold(name, "utf-8") {
		return string(raw)
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return string(raw)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
