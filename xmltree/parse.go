package xmltree

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jacoelho/xsd/pkg/xmlstream"
)

// ErrMalformed is returned when the input cannot be parsed into a single-rooted tree.
var ErrMalformed = errors.New("malformed xml")

// ParseString parses s into a Document.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Parse reads a complete document from r. Namespace declarations are kept as
// xmlns attributes and attributes in a declared namespace keep their prefix.
func Parse(r io.Reader) (*Document, error) {
	reader, err := xmlstream.NewStringReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var (
		root   *Element
		stack  []*Element
		scopes []map[string]string
	)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch ev.Kind {
		case xmlstream.EventStartElement:
			if root != nil && len(stack) == 0 {
				return nil, fmt.Errorf("%w: multiple root elements", ErrMalformed)
			}
			scope := declaredPrefixes(ev.Attrs)
			scopes = append(scopes, scope)

			el := &Element{Name: qualify(scopes, ev.Name.Namespace, ev.Name.Local)}
			for _, a := range ev.Attrs {
				el.Attrs = append(el.Attrs, Attr{Name: attrName(scopes, a), Value: a.Value()})
			}
			if len(stack) == 0 {
				root = el
			} else {
				stack[len(stack)-1].AppendChild(el)
			}
			stack = append(stack, el)

		case xmlstream.EventEndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced end element", ErrMalformed)
			}
			stack = stack[:len(stack)-1]
			scopes = scopes[:len(scopes)-1]

		case xmlstream.EventCharData:
			if len(stack) == 0 {
				if strings.TrimSpace(string(ev.Text)) != "" {
					return nil, fmt.Errorf("%w: text outside root element", ErrMalformed)
				}
				continue
			}
			// ev.Text is only valid until the next call.
			stack[len(stack)-1].AppendText(string(ev.Text))
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: unexpected end of input", ErrMalformed)
	}
	return NewDocument(root), nil
}

func declaredPrefixes(attrs []xmlstream.StringAttr) map[string]string {
	var scope map[string]string
	for _, a := range attrs {
		if a.NamespaceURI() != xmlstream.XMLNSNamespace || a.LocalName() == "xmlns" {
			continue
		}
		if scope == nil {
			scope = make(map[string]string)
		}
		scope[a.Value()] = a.LocalName()
	}
	return scope
}

func attrName(scopes []map[string]string, a xmlstream.StringAttr) string {
	ns, local := a.NamespaceURI(), a.LocalName()
	if ns == xmlstream.XMLNSNamespace {
		if local == "xmlns" {
			return "xmlns"
		}
		return "xmlns:" + local
	}
	return qualify(scopes, ns, local)
}

func qualify(scopes []map[string]string, ns, local string) string {
	if ns == "" {
		return local
	}
	if ns == xmlstream.XMLNamespace {
		return "xml:" + local
	}
	for i := len(scopes) - 1; i >= 0; i-- {
		if prefix, ok := scopes[i][ns]; ok {
			return prefix + ":" + local
		}
	}
	if ns == XLinkNamespace {
		return "xlink:" + local
	}
	// default namespace
	return local
}
