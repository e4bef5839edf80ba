// Package doccomment reads the XML documentation attached to declarations.
//
// Parsing never fails: malformed input is logged and treated as absent
// documentation, so every lookup on the result reports "not found".
package doccomment

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/dejo1307/cs2luadoc/internal/logging"
)

const (
	tagSummary = "summary"
	tagParam   = "param"
	tagReturns = "returns"
)

// element is one XML element in document order.
type element struct {
	name  string
	attrs map[string]string
	text  strings.Builder
}

// Doc is a parsed documentation comment.
type Doc struct {
	elements []*element
}

// Empty reports whether the comment carried no elements.
func (d *Doc) Empty() bool {
	return d == nil || len(d.elements) == 0
}

// Parse reads raw as an XML fragment. Fragments without a single root, such as
// several top-level tags, are accepted. A parse error is logged at warn level
// and yields an empty Doc.
func Parse(raw string, logger *zap.SugaredLogger) *Doc {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &Doc{}
	}
	elements, err := decode(raw)
	if err != nil {
		logging.OrNop(logger).Warnw("ignoring malformed doc comment", "error", err, "text", truncate(raw, 80))
		return &Doc{}
	}
	return &Doc{elements: elements}
}

func decode(raw string) ([]*element, error) {
	raw = stripDeclaration(raw)
	dec := xml.NewDecoder(strings.NewReader("<root>" + raw + "</root>"))
	dec.Entity = xml.HTMLEntity

	var (
		all    []*element
		open   []*element
		rooted bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "decoding doc comment")
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			if !rooted {
				// The synthetic wrapper is never a lookup target.
				rooted = true
				open = append(open, &element{})
				continue
			}
			el := &element{name: tok.Name.Local, attrs: make(map[string]string, len(tok.Attr))}
			for _, a := range tok.Attr {
				el.attrs[a.Name.Local] = a.Value
			}
			all = append(all, el)
			open = append(open, el)
		case xml.EndElement:
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		case xml.CharData:
			for _, el := range open {
				el.text.Write(tok)
			}
		}
	}
	return all, nil
}

// stripDeclaration drops a leading <?xml ...?> so the fragment can be wrapped.
func stripDeclaration(s string) string {
	if !strings.HasPrefix(s, "<?xml") {
		return s
	}
	if i := strings.Index(s, "?>"); i >= 0 {
		return strings.TrimSpace(s[i+2:])
	}
	return s
}

func (d *Doc) find(name, attr, value string) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, el := range d.elements {
		if el.name != name {
			continue
		}
		if attr != "" {
			if v, ok := el.attrs[attr]; !ok || v != value {
				continue
			}
		}
		return Normalize(el.text.String()), true
	}
	return "", false
}

// Summary returns the text of the first summary element.
func (d *Doc) Summary() (string, bool) {
	return d.find(tagSummary, "", "")
}

// Param returns the text of the first param element whose name attribute is
// name.
func (d *Doc) Param(name string) (string, bool) {
	return d.find(tagParam, "name", name)
}

// Returns returns the text of the first returns element.
func (d *Doc) Returns() (string, bool) {
	return d.find(tagReturns, "", "")
}

// Normalize converts CRLF line endings to LF and trims surrounding space.
func Normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}

// SingleLine folds s onto one line. With br set, newlines become <br>;
// otherwise they are dropped.
func SingleLine(s string, br bool) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\r", "")
	if br {
		return strings.ReplaceAll(s, "\n", "<br>")
	}
	return strings.ReplaceAll(s, "\n", "")
}

// Lines splits normalized text into lines for comment blocks.
func Lines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
