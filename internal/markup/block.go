package markup

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Block names a block-level shape a line of text can take.
type Block string

const (
	Paragraph    Block = "p"
	Heading1     Block = "h1"
	Heading2     Block = "h2"
	Heading3     Block = "h3"
	Quote        Block = "blockquote"
	Code         Block = "pre"
	BulletList   Block = "ul"
	NumberedList Block = "ol"
	Divider      Block = "hr"
	Checklist    Block = "todo"
)

// IsList reports whether b wraps its content in a list item.
func (b Block) IsList() bool {
	return b == BulletList || b == NumberedList
}

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Blockquote: true, atom.Pre: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Hr: true, atom.Div: true,
	atom.Table: true, atom.Tr: true, atom.Section: true, atom.Article: true,
}

// IsBlock reports whether n is a block-level element.
func IsBlock(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && blockAtoms[n.DataAtom]
}

// IsVoid reports whether n is an element that never has children.
func IsVoid(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Br, atom.Hr, atom.Img, atom.Input, atom.Wbr:
		return true
	}
	return false
}

// BlockOf reports the shape of a block element.
func BlockOf(n *html.Node) Block {
	if IsTask(n) {
		return Checklist
	}
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.H1:
			return Heading1
		case atom.H2:
			return Heading2
		case atom.H3:
			return Heading3
		case atom.Blockquote:
			return Quote
		case atom.Pre:
			return Code
		case atom.Hr:
			return Divider
		case atom.Li:
			if n.Parent != nil && n.Parent.DataAtom == atom.Ol {
				return NumberedList
			}
			return BulletList
		}
	}
	return Paragraph
}

// NewBlock returns an empty element for b. For lists it returns the list element
// with one empty item; for checklists an empty task item.
func NewBlock(b Block) *html.Node {
	switch b {
	case Checklist:
		return NewTask(StatusTodo, "")
	case BulletList, NumberedList:
		list := Element(string(b))
		list.AppendChild(element(atom.Li))
		return list
	case Divider:
		return element(atom.Hr)
	case Heading1, Heading2, Heading3, Quote, Code:
		return Element(string(b))
	}
	return element(atom.P)
}

// InlineFormat is an inline formatting element.
type InlineFormat string

const (
	Bold          InlineFormat = "b"
	Italic        InlineFormat = "i"
	Underline     InlineFormat = "u"
	Strikethrough InlineFormat = "s"
	InlineCode    InlineFormat = "code"
)

// Valid reports whether f is a known inline format.
func (f InlineFormat) Valid() bool {
	switch f {
	case Bold, Italic, Underline, Strikethrough, InlineCode:
		return true
	}
	return false
}

// Matches reports whether n is an element carrying format f, counting synonyms
// such as strong for bold.
func (f InlineFormat) Matches(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch f {
	case Bold:
		return n.DataAtom == atom.B || n.DataAtom == atom.Strong
	case Italic:
		return n.DataAtom == atom.I || n.DataAtom == atom.Em
	case Underline:
		return n.DataAtom == atom.U
	case Strikethrough:
		return n.DataAtom == atom.S || n.DataAtom == atom.Strike || n.DataAtom == atom.Del
	case InlineCode:
		return n.DataAtom == atom.Code
	}
	return false
}
