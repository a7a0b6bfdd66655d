package xmltree

import (
	"bufio"
	"encoding/xml"
	"io"
	"strings"
)

const declaration = `<?xml version="1.0" encoding="UTF-8"?>`

// Write encodes doc to w with an XML declaration and no indentation.
func Write(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(declaration); err != nil {
		return err
	}
	if !doc.IsEmpty() {
		if err := writeElement(bw, doc.Root); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// String returns the encoded document. An empty document encodes as the declaration only.
func (d *Document) String() string {
	var b strings.Builder
	_ = Write(&b, d)
	return b.String()
}

func writeElement(w *bufio.Writer, e *Element) error {
	w.WriteByte('<')
	w.WriteString(e.Name)
	for _, a := range e.Attrs {
		w.WriteByte(' ')
		w.WriteString(a.Name)
		w.WriteString(`="`)
		if err := xml.EscapeText(w, []byte(a.Value)); err != nil {
			return err
		}
		w.WriteByte('"')
	}
	if len(e.Children) == 0 {
		_, err := w.WriteString("/>")
		return err
	}
	w.WriteByte('>')
	for _, c := range e.Children {
		switch n := c.(type) {
		case *Element:
			if err := writeElement(w, n); err != nil {
				return err
			}
		case *CharData:
			if err := writeCharData(w, n); err != nil {
				return err
			}
		}
	}
	w.WriteString("</")
	w.WriteString(e.Name)
	_, err := w.WriteString(">")
	return err
}

func writeCharData(w *bufio.Writer, cd *CharData) error {
	if !cd.CDATA {
		return xml.EscapeText(w, []byte(cd.Data))
	}
	// "]]>" cannot appear inside a section; split it across two sections.
	parts := strings.Split(cd.Data, "]]>")
	for i, p := range parts {
		w.WriteString("<![CDATA[")
		if i > 0 {
			w.WriteString(">")
		}
		w.WriteString(p)
		if i < len(parts)-1 {
			w.WriteString("]]")
		}
		if _, err := w.WriteString("]]>"); err != nil {
			return err
		}
	}
	return nil
}
