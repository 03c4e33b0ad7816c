// Package pdftest builds small fillable PDF documents in memory for tests.
package pdftest

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/a3tai/casedocs/internal/pdf/form"
)

// Field describes one terminal field to place on the document
type Field struct {
	Name     string
	Type     form.FieldType
	Value    string
	Options  []string
	OnState  string
	ReadOnly bool
	Editable bool
	MaxLen   int
	Page     int
}

// Builder accumulates fields and renders them into a PDF
type Builder struct {
	pages  int
	fields []Field
	noForm bool
}

// New creates a builder for a single page document
func New() *Builder {
	return &Builder{pages: 1}
}

// Pages sets the page count
func (b *Builder) Pages(n int) *Builder {
	if n > 0 {
		b.pages = n
	}
	return b
}

// WithoutForm omits the AcroForm dictionary entirely
func (b *Builder) WithoutForm() *Builder {
	b.noForm = true
	return b
}

// Add appends a field
func (b *Builder) Add(f Field) *Builder {
	b.fields = append(b.fields, f)
	return b
}

// Text adds empty text fields
func (b *Builder) Text(names ...string) *Builder {
	for _, name := range names {
		b.Add(Field{Name: name, Type: form.FieldTypeText})
	}
	return b
}

// TextValue adds a text field with a preset value
func (b *Builder) TextValue(name, value string) *Builder {
	return b.Add(Field{Name: name, Type: form.FieldTypeText, Value: value})
}

// Checkbox adds unchecked checkboxes whose on state is Yes
func (b *Builder) Checkbox(names ...string) *Builder {
	for _, name := range names {
		b.Add(Field{Name: name, Type: form.FieldTypeCheckbox, OnState: "Yes"})
	}
	return b
}

// Radio adds a radio group with one widget per state
func (b *Builder) Radio(name string, states ...string) *Builder {
	return b.Add(Field{Name: name, Type: form.FieldTypeRadio, Options: states})
}

// Dropdown adds a combo box
func (b *Builder) Dropdown(name string, options ...string) *Builder {
	return b.Add(Field{Name: name, Type: form.FieldTypeDropdown, Options: options})
}

// Listbox adds a list box
func (b *Builder) Listbox(name string, options ...string) *Builder {
	return b.Add(Field{Name: name, Type: form.FieldTypeListbox, Options: options})
}

// treeNode is one partial name in the field hierarchy
type treeNode struct {
	partial  string
	objNr    int
	parent   *treeNode
	children []*treeNode
	field    *Field
	widgets  []int
}

// Bytes renders the document
func (b *Builder) Bytes() []byte {
	w := &writer{}

	const (
		catalogNr    = 1
		pagesNr      = 2
		acroFormNr   = 3
		appearanceNr = 4
	)
	w.reserve(4)

	pageNrs := make([]int, b.pages)
	for i := range pageNrs {
		pageNrs[i] = w.alloc()
	}

	roots := b.buildTree(w)
	annots := make(map[int][]int)

	var emit func(n *treeNode)
	emit = func(n *treeNode) {
		entries := []string{"/T " + hexString(n.partial)}
		if n.parent != nil {
			entries = append(entries, fmt.Sprintf("/Parent %d 0 R", n.parent.objNr))
		}

		if n.field == nil {
			kids := make([]string, 0, len(n.children))
			for _, c := range n.children {
				kids = append(kids, ref(c.objNr))
				emit(c)
			}
			entries = append(entries, "/Kids ["+strings.Join(kids, " ")+"]")
			w.set(n.objNr, dict(entries))
			return
		}

		page := b.page(n.field)
		pageRef := ref(pageNrs[page-1])
		entries = append(entries, fieldEntries(n.field)...)

		if n.field.Type == form.FieldTypeRadio {
			kids := make([]string, 0, len(n.field.Options))
			for i, state := range n.field.Options {
				widgetNr := n.widgets[i]
				kids = append(kids, ref(widgetNr))
				as := "/Off"
				if state == n.field.Value {
					as = "/" + state
				}
				w.set(widgetNr, dict([]string{
					"/Type /Annot",
					"/Subtype /Widget",
					fmt.Sprintf("/Parent %d 0 R", n.objNr),
					fmt.Sprintf("/Rect [%d 700 %d 712]", 50+i*20, 62+i*20),
					"/P " + pageRef,
					fmt.Sprintf("/AP << /N << /%s %d 0 R /Off %d 0 R >> >>", state, appearanceNr, appearanceNr),
					"/AS " + as,
				}))
				annots[page] = append(annots[page], widgetNr)
			}
			entries = append(entries, "/Kids ["+strings.Join(kids, " ")+"]")
			w.set(n.objNr, dict(entries))
			return
		}

		entries = append(entries,
			"/Type /Annot",
			"/Subtype /Widget",
			"/Rect [50 600 250 614]",
			"/P "+pageRef,
		)
		if n.field.Type == form.FieldTypeCheckbox {
			on := n.field.OnState
			if on == "" {
				on = "Yes"
			}
			as := "/Off"
			if n.field.Value == on {
				as = "/" + on
			}
			entries = append(entries,
				fmt.Sprintf("/AP << /N << /%s %d 0 R /Off %d 0 R >> >>", on, appearanceNr, appearanceNr),
				"/AS "+as,
			)
		}
		w.set(n.objNr, dict(entries))
		annots[page] = append(annots[page], n.objNr)
	}

	rootRefs := make([]string, 0, len(roots))
	for _, r := range roots {
		rootRefs = append(rootRefs, ref(r.objNr))
		emit(r)
	}

	catalog := []string{"/Type /Catalog", fmt.Sprintf("/Pages %d 0 R", pagesNr)}
	if !b.noForm {
		catalog = append(catalog, fmt.Sprintf("/AcroForm %d 0 R", acroFormNr))
	}
	w.set(catalogNr, dict(catalog))

	kids := make([]string, 0, len(pageNrs))
	for i, nr := range pageNrs {
		kids = append(kids, ref(nr))
		entries := []string{
			"/Type /Page",
			fmt.Sprintf("/Parent %d 0 R", pagesNr),
			"/MediaBox [0 0 612 792]",
		}
		if a := annots[i+1]; len(a) > 0 {
			sort.Ints(a)
			refs := make([]string, 0, len(a))
			for _, nr := range a {
				refs = append(refs, ref(nr))
			}
			entries = append(entries, "/Annots ["+strings.Join(refs, " ")+"]")
		}
		w.set(nr, dict(entries))
	}
	w.set(pagesNr, dict([]string{
		"/Type /Pages",
		"/Kids [" + strings.Join(kids, " ") + "]",
		fmt.Sprintf("/Count %d", len(pageNrs)),
	}))

	w.set(acroFormNr, dict([]string{
		"/Fields [" + strings.Join(rootRefs, " ") + "]",
		"/DA (/Helv 0 Tf 0 g)",
	}))

	content := "0 g"
	w.set(appearanceNr, fmt.Sprintf("<< /Type /XObject /Subtype /Form /BBox [0 0 12 12] /Length %d >>\nstream\n%s\nendstream", len(content), content))

	return w.render(catalogNr)
}

// buildTree splits dotted names into a hierarchy and allocates object numbers
func (b *Builder) buildTree(w *writer) []*treeNode {
	var roots []*treeNode
	index := make(map[string]*treeNode)

	for i := range b.fields {
		f := &b.fields[i]
		parts := strings.Split(f.Name, ".")

		var parent *treeNode
		path := ""
		for depth, part := range parts {
			if path == "" {
				path = part
			} else {
				path += "." + part
			}

			n, ok := index[path]
			if !ok {
				n = &treeNode{partial: part, parent: parent, objNr: w.alloc()}
				index[path] = n
				if parent == nil {
					roots = append(roots, n)
				} else {
					parent.children = append(parent.children, n)
				}
			}
			if depth == len(parts)-1 {
				n.field = f
				if f.Type == form.FieldTypeRadio {
					for range f.Options {
						n.widgets = append(n.widgets, w.alloc())
					}
				}
			}
			parent = n
		}
	}

	return roots
}

func (b *Builder) page(f *Field) int {
	if f.Page < 1 || f.Page > b.pages {
		return 1
	}
	return f.Page
}

// fieldEntries renders the field-level entries for a terminal field
func fieldEntries(f *Field) []string {
	var entries []string
	flags := 0
	if f.ReadOnly {
		flags |= 1
	}

	switch f.Type {
	case form.FieldTypeText:
		entries = append(entries, "/FT /Tx", "/DA (/Helv 10 Tf 0 g)")
		if f.Value != "" {
			entries = append(entries, "/V "+hexString(f.Value))
		}
		if f.MaxLen > 0 {
			entries = append(entries, fmt.Sprintf("/MaxLen %d", f.MaxLen))
		}
	case form.FieldTypeCheckbox:
		entries = append(entries, "/FT /Btn")
		if f.Value != "" {
			entries = append(entries, "/V /"+f.Value)
		}
	case form.FieldTypeRadio:
		flags |= 1 << 15
		entries = append(entries, "/FT /Btn")
		if f.Value != "" {
			entries = append(entries, "/V /"+f.Value)
		}
	case form.FieldTypeDropdown, form.FieldTypeListbox:
		if f.Type == form.FieldTypeDropdown {
			flags |= 1 << 17
			if f.Editable {
				flags |= 1 << 18
			}
		}
		opts := make([]string, 0, len(f.Options))
		for _, o := range f.Options {
			opts = append(opts, hexString(o))
		}
		entries = append(entries, "/FT /Ch", "/DA (/Helv 10 Tf 0 g)", "/Opt ["+strings.Join(opts, " ")+"]")
		if f.Value != "" {
			entries = append(entries, "/V "+hexString(f.Value))
		}
	case form.FieldTypeSignature:
		entries = append(entries, "/FT /Sig")
	case form.FieldTypeButton:
		flags |= 1 << 16
		entries = append(entries, "/FT /Btn")
	}

	if flags != 0 {
		entries = append(entries, fmt.Sprintf("/Ff %d", flags))
	}
	return entries
}

func hexString(s string) string {
	return "<" + hex.EncodeToString([]byte(s)) + ">"
}

func ref(nr int) string {
	return fmt.Sprintf("%d 0 R", nr)
}

func dict(entries []string) string {
	return "<< " + strings.Join(entries, " ") + " >>"
}

// writer numbers objects and renders them with a classic xref table
type writer struct {
	objects []string
}

func (w *writer) reserve(n int) {
	for i := 0; i < n; i++ {
		w.alloc()
	}
}

func (w *writer) alloc() int {
	w.objects = append(w.objects, "")
	return len(w.objects)
}

func (w *writer) set(nr int, body string) {
	w.objects[nr-1] = body
}

func (w *writer) render(rootNr int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(w.objects))
	for i, body := range w.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(w.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(w.objects)+1, rootNr, xref)

	return buf.Bytes()
}
