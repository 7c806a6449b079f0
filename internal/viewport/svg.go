package viewport

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// SVG is an Element over a rendered SVG document. Only the root start tag
// and the first <g> start tag are ever rewritten; every other byte of the
// document is kept as rendered.
type SVG struct {
	mu    sync.Mutex
	src   []byte
	root  tag
	group *tag
}

type tag struct {
	start, end  int
	selfClosing bool
	el          xml.StartElement
}

// ParseSVG locates the root <svg> element and its first <g> in data.
func ParseSVG(data []byte) (*SVG, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity

	s := &SVG{src: data}
	foundRoot := false
	for {
		start := int(d.InputOffset())
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing svg: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		end := int(d.InputOffset())
		t := tag{
			start:       start,
			end:         end,
			selfClosing: bytes.HasSuffix(bytes.TrimSpace(data[start:end]), []byte("/>")),
			el:          xml.CopyToken(se).(xml.StartElement),
		}
		if !foundRoot {
			if se.Name.Local != "svg" {
				return nil, fmt.Errorf("parsing svg: root element is <%s>", se.Name.Local)
			}
			s.root = t
			foundRoot = true
			continue
		}
		if se.Name.Local == "g" {
			s.group = &t
			break
		}
	}
	if !foundRoot {
		return nil, errors.New("parsing svg: no root element")
	}
	return s, nil
}

// StripSizing removes the inline style the renderer puts on the root.
func (s *SVG) StripSizing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root.del("style")
}

// FillContainer sizes the root to its container.
func (s *SVG) FillContainer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root.set("width", "100%")
	s.root.set("height", "100%")
}

// Extent reads the viewBox, falling back to numeric width and height.
func (s *SVG) Extent() Extent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vb, ok := s.root.get("viewBox"); ok {
		f := strings.FieldsFunc(vb, func(r rune) bool { return r == ' ' || r == ',' })
		if len(f) == 4 {
			w, werr := strconv.ParseFloat(f[2], 64)
			h, herr := strconv.ParseFloat(f[3], 64)
			if werr == nil && herr == nil {
				return Extent{Width: w, Height: h}
			}
		}
	}
	var e Extent
	if w, ok := s.root.get("width"); ok {
		e.Width, _ = strconv.ParseFloat(strings.TrimSuffix(w, "px"), 64)
	}
	if h, ok := s.root.get("height"); ok {
		e.Height, _ = strconv.ParseFloat(strings.TrimSuffix(h, "px"), 64)
	}
	return e
}

// Group returns the first <g> of the document, or nil.
func (s *SVG) Group() Group {
	if s.group == nil {
		return nil
	}
	return svgGroup{s}
}

// Bytes serialises the document with all changes applied.
func (s *SVG) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf bytes.Buffer
	buf.Grow(len(s.src) + 64)
	buf.Write(s.src[:s.root.start])
	s.root.write(&buf)
	if s.group == nil {
		buf.Write(s.src[s.root.end:])
		return buf.Bytes()
	}
	buf.Write(s.src[s.root.end:s.group.start])
	s.group.write(&buf)
	buf.Write(s.src[s.group.end:])
	return buf.Bytes()
}

// GroupTransform returns the transform attribute of the first <g>.
func (s *SVG) GroupTransform() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group == nil {
		return ""
	}
	v, _ := s.group.get("transform")
	return v
}

type svgGroup struct{ s *SVG }

func (g svgGroup) SetTransform(t Transform) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	g.s.group.set("transform", t.String())
}

func attrName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func (t *tag) get(name string) (string, bool) {
	for _, a := range t.el.Attr {
		if attrName(a.Name) == name {
			return a.Value, true
		}
	}
	return "", false
}

func (t *tag) set(name, value string) {
	for i, a := range t.el.Attr {
		if attrName(a.Name) == name {
			t.el.Attr[i].Value = value
			return
		}
	}
	t.el.Attr = append(t.el.Attr, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

func (t *tag) del(name string) {
	attrs := t.el.Attr[:0]
	for _, a := range t.el.Attr {
		if attrName(a.Name) != name {
			attrs = append(attrs, a)
		}
	}
	t.el.Attr = attrs
}

func (t *tag) write(buf *bytes.Buffer) {
	buf.WriteByte('<')
	buf.WriteString(attrName(t.el.Name))
	for _, a := range t.el.Attr {
		buf.WriteByte(' ')
		buf.WriteString(attrName(a.Name))
		buf.WriteString(`="`)
		xml.EscapeText(buf, []byte(a.Value))
		buf.WriteByte('"')
	}
	if t.selfClosing {
		buf.WriteString("/>")
	} else {
		buf.WriteByte('>')
	}
}
