package codec

import (
	"regexp"

	"contactdesk/internal/logging"
)

// Text patterns for the server-owned elements. Matching is single-line and
// non-greedy, and consumes trailing whitespace.
var (
	ownerElement = regexp.MustCompile(`<ownerUsername>.*?</ownerUsername>\s*`)
	idElement    = regexp.MustCompile(`<id>.*?</id>\s*`)
)

// RedactXML turns the server's XML export into contacts.xml. The document is
// never parsed: ownerUsername and id elements are cut out as text and every
// other byte passes through unchanged.
func RedactXML(raw []byte) *Artifact {
	out := ownerElement.ReplaceAll(raw, nil)
	out = idElement.ReplaceAll(out, nil)
	logging.CodecDebug("redacted XML export: %d -> %d bytes", len(raw), len(out))
	return &Artifact{Name: "contacts.xml", MediaType: MediaTypeXML, Data: out}
}
