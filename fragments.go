package markupcheck

import (
	"fmt"
	"strings"

	"github.com/validatehq/markupcheck/w3c"
)

// DefaultJQueryURL is where browsers load jQuery from when the page does
// not already ship it. jQuery injects and later recolors the status box.
const DefaultJQueryURL = "http://ajax.googleapis.com/ajax/libs/jquery/1.3.2/jquery.min.js"

// ResultPathMarker tags request paths that serve cached validation result
// pages; the result id follows the final hyphen.
const ResultPathMarker = "view-w3c-markup-validation-result-"

const (
	validColor   = "#55B05A"
	invalidColor = "#D23D24"
)

// bootstrapFragment builds the markup appended right after </html> before
// validation starts: a jQuery loader plus the floating status box in its
// "running" state.
func bootstrapFragment(jqueryURL string) string {
	return "\n" +
		"<script type=\"text/javascript\">\n" +
		"    if (typeof jQuery == 'undefined') {\n" +
		"        document.body.appendChild(document.createElement('script')).src = '" + jqueryURL + "';\n" +
		"    }\n" +
		"</script>\n" +
		"<script type=\"text/javascript\">\n" +
		"    setTimeout(function() {\n" +
		"        jQuery('body').append('<div id=\"w3c-markup-validation-box\" style=\"z-index:10000;position:fixed;top:33px;right:33px;width:250px;border:3px solid yellow;padding:3px;background-color:white;opacity:0.75\">" +
		"<p style=\"position:absolute;top:3px;right:5px;margin:0;border:0;padding:0;background-color:white\"><a href=\"javascript:closeW3cValidationBox()\" style=\"font-family:sans-serif;font-size:small;font-weight:bold;text-decoration:none;color:black\">X</a></p>" +
		"<p style=\"margin:0;border:0;padding:0;padding-right:1.5em;font-family:sans-serif;font-size:small;font-weight:normal;text-decoration:none;color:black;background-color:white\">W3C Markup Validation is running ...</p>" +
		"</div>');\n" +
		"    }, 100);\n" +
		"    function closeW3cValidationBox() { jQuery('#w3c-markup-validation-box').hide(); }\n" +
		"</script>\n"
}

// resultScript updates the status box with the verdict stored under id. The
// message goes out as-is: verdict headings carry no quotes, and any inline
// markup in them has to survive.
func resultScript(res *w3c.Result, id int) string {
	borderColor, backgroundColor := "green", validColor
	if !res.Valid {
		borderColor, backgroundColor = "red", invalidColor
	}
	var b strings.Builder
	b.WriteString("<script type=\"text/javascript\">\n")
	b.WriteString("    setTimeout(function() {\n")
	fmt.Fprintf(&b, "        jQuery('#w3c-markup-validation-box p:eq(1)').html('%s');\n", res.Message)
	fmt.Fprintf(&b, "        jQuery('#w3c-markup-validation-box').append('<p style=\"margin:0;border:0;padding:0\"><a href=\"/%s%d\" style=\"font-family:sans-serif;font-size:small;font-weight:normal;text-decoration:none;color:blue\" target=\"_blank\">View Result</a></p>');\n", ResultPathMarker, id)
	fmt.Fprintf(&b, "        jQuery('#w3c-markup-validation-box').css('border-color', '%s').css('background-color', '%s').find('*').css('background-color', '%s');\n", borderColor, backgroundColor, backgroundColor)
	b.WriteString("    }, 100);\n")
	b.WriteString("</script>\n")
	return b.String()
}

var scriptEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;", "'", "\\'")

// failureScript turns the status box red and shows why validation could not
// be performed. The message is normalized and escaped for embedding in the
// single-quoted JavaScript string.
func failureScript(message string) string {
	escaped := scriptEscaper.Replace(w3c.NormalizeSpace(message))
	var b strings.Builder
	b.WriteString("<script type=\"text/javascript\">\n")
	b.WriteString("    setTimeout(function() {\n")
	fmt.Fprintf(&b, "        jQuery('#w3c-markup-validation-box p:eq(1)').html('W3C Markup Validation failed: %s');\n", escaped)
	fmt.Fprintf(&b, "        jQuery('#w3c-markup-validation-box').css('border-color', 'red').css('background-color', '%s').find('*').css('background-color', '%s');\n", invalidColor, invalidColor)
	b.WriteString("    }, 100);\n")
	b.WriteString("</script>\n")
	return b.String()
}
