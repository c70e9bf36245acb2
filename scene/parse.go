package scene

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/chrisuehlinger/viewwatch/geometry"
)

// Parse reads an HTML page whose elements are positioned with inline styles
// (left, top, width, height in px, page coordinates) and builds a Document.
// An element with "overflow: auto", "scroll" or "hidden" becomes a scroll
// container. The <html> element's width and height size the document element.
func Parse(r io.Reader, display geometry.Size) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing html")
	}

	d := NewDocument(display)
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Html {
			continue
		}
		style, err := parseStyle(getAttr(c, "style"))
		if err != nil {
			return nil, errors.Wrap(err, "<html>")
		}
		d.root.Box = style.box
		d.root.Scrollable = style.scrollable
		if err := d.build(d.root, c); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// ParseString parses HTML from a string.
func ParseString(content string, display geometry.Size) (*Document, error) {
	return Parse(strings.NewReader(content), display)
}

// LoadFile parses the HTML file at path.
func LoadFile(path string, display geometry.Size) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening scene")
	}
	defer f.Close()

	d, err := Parse(f, display)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	return d, nil
}

// build converts the element children of n into children of parent.
func (d *Document) build(parent *Element, n *html.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Head, atom.Script, atom.Style, atom.Template:
			continue
		}

		id := getAttr(c, "id")
		style, err := parseStyle(getAttr(c, "style"))
		if err != nil {
			return errors.Wrapf(err, "<%s id=%q>", c.Data, id)
		}

		e, err := d.Append(parent, c.Data, id, style.box)
		if err != nil {
			return err
		}
		e.Scrollable = style.scrollable

		if err := d.build(e, c); err != nil {
			return err
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

type boxStyle struct {
	box        geometry.Rect
	scrollable bool
}

// parseStyle reads the positioning subset of an inline style attribute.
// Unknown properties are ignored.
func parseStyle(style string) (boxStyle, error) {
	var out boxStyle
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.ToLower(strings.TrimSpace(value))

		var dst *float64
		switch name {
		case "left":
			dst = &out.box.X
		case "top":
			dst = &out.box.Y
		case "width":
			dst = &out.box.Width
		case "height":
			dst = &out.box.Height
		case "overflow", "overflow-x", "overflow-y":
			switch value {
			case "auto", "scroll", "hidden":
				out.scrollable = true
			}
			continue
		default:
			continue
		}

		v, err := parsePixels(value)
		if err != nil {
			return boxStyle{}, errors.Wrapf(err, "property %s", name)
		}
		*dst = v
	}
	return out, nil
}

func parsePixels(value string) (float64, error) {
	num := strings.TrimSuffix(value, "px")
	v, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, errors.Errorf("%q is not a pixel length", value)
	}
	return v, nil
}
