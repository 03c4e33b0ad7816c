package form

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func init() {
	// no user config directory lookups from a server process
	model.ConfigPath = "disable"
}

// Document is a parsed PDF whose form fields can be read and written.
// It is not safe for concurrent use.
type Document struct {
	ctx      *model.Context
	acroForm types.Dict
	nodes    map[string]*node
	order    []string
	dirty    bool
}

// node ties a terminal field to its dictionaries in the object graph
type node struct {
	field   Field
	dict    types.Dict
	widgets []types.Dict
	opts    []option
}

// option is one entry of a choice field's Opt array
type option struct {
	export  string
	display string
}

// inherited carries the inheritable field attributes down the field tree
type inherited struct {
	ft     types.Name
	ff     int
	opt    types.Array
	maxLen int
	value  types.Object
}

// Load parses a PDF from rs
func Load(rs io.ReadSeeker) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	doc = &Document{
		ctx:   ctx,
		nodes: make(map[string]*node),
	}

	if err := doc.indexFields(); err != nil {
		return nil, err
	}

	return doc, nil
}

// LoadBytes parses a PDF held in memory
func LoadBytes(data []byte) (*Document, error) {
	return Load(bytes.NewReader(data))
}

// LoadFile parses the PDF at path
func LoadFile(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	return Load(file)
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// HasForm reports whether the document carries an AcroForm dictionary
func (d *Document) HasForm() bool {
	return d.acroForm != nil
}

// Fields returns every terminal field in document order
func (d *Document) Fields() []Field {
	out := make([]Field, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.nodes[name].field)
	}
	return out
}

// Names returns the fully qualified field names, sorted
func (d *Document) Names() []string {
	names := append([]string(nil), d.order...)
	sort.Strings(names)
	return names
}

// Lookup finds a field by its fully qualified name
func (d *Document) Lookup(name string) (Field, bool) {
	n, ok := d.nodes[name]
	if !ok {
		return Field{}, false
	}
	return n.field, true
}

// Value returns the current value of a field
func (d *Document) Value(name string) (string, bool) {
	n, ok := d.nodes[name]
	if !ok {
		return "", false
	}
	return n.field.Value, true
}

// indexFields walks AcroForm.Fields and records every terminal field
func (d *Document) indexFields() error {
	rootDict, err := d.ctx.Catalog()
	if err != nil {
		return fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil
	}

	acroFormDict, err := d.ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return nil
	}
	d.acroForm = acroFormDict

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil
	}

	fieldsArray, err := d.ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	pages := d.annotationPages(rootDict)
	visited := make(map[int]bool)

	for _, fieldObj := range fieldsArray {
		d.walk(fieldObj, "", inherited{}, pages, visited, 0)
	}

	return nil
}

// walk descends one node of the field tree. Kids carrying a T entry are child
// fields; kids without one are widget annotations of this field.
func (d *Document) walk(obj types.Object, parent string, inh inherited, pages map[int]int, visited map[int]bool, depth int) {
	if depth > maxFieldDepth {
		return
	}

	objNr := objectNumber(obj)
	if objNr > 0 {
		if visited[objNr] {
			return
		}
		visited[objNr] = true
	}

	dict, err := d.ctx.DereferenceDict(obj)
	if err != nil || dict == nil {
		return
	}

	partial := d.stringEntry(dict, "T")
	name := parent
	if partial != "" {
		if parent != "" {
			name = parent + fieldNameJoiner + partial
		} else {
			name = partial
		}
	}

	inh = d.inherit(dict, inh)

	var children []types.Object
	var widgets []types.Dict
	page := pages[objNr]

	if kidsObj, found := dict.Find("Kids"); found {
		if kids, err := d.ctx.DereferenceArray(kidsObj); err == nil {
			for _, kid := range kids {
				kidDict, err := d.ctx.DereferenceDict(kid)
				if err != nil || kidDict == nil {
					continue
				}
				if _, hasT := kidDict.Find("T"); hasT {
					children = append(children, kid)
					continue
				}
				widgets = append(widgets, kidDict)
				if page == 0 {
					page = pages[objectNumber(kid)]
				}
			}
		}
	}

	if len(children) > 0 {
		for _, child := range children {
			d.walk(child, name, inh, pages, visited, depth+1)
		}
		return
	}

	if name == "" {
		return
	}
	if _, dup := d.nodes[name]; dup {
		return
	}

	if len(widgets) == 0 {
		widgets = []types.Dict{dict}
	}
	if page == 0 {
		page = d.widgetPage(widgets, pages)
	}

	n := &node{dict: dict, widgets: widgets}
	n.field = Field{
		Name:     name,
		Type:     fieldType(inh.ft, inh.ff),
		ReadOnly: inh.ff&flagReadOnly != 0,
		Required: inh.ff&flagRequired != 0,
		Page:     page,
	}
	n.field.MaxLength = inh.maxLen
	n.field.Multiline = n.field.Type == FieldTypeText && inh.ff&flagMultiline != 0
	n.field.Editable = n.field.Type == FieldTypeDropdown && inh.ff&flagEdit != 0

	switch n.field.Type {
	case FieldTypeCheckbox:
		n.field.OnState = d.onStates(widgets)[0]
	case FieldTypeRadio:
		n.field.Options = d.onStates(widgets)
	case FieldTypeDropdown, FieldTypeListbox:
		n.opts = d.options(inh.opt)
		for _, o := range n.opts {
			n.field.Options = append(n.field.Options, o.display)
		}
	}

	n.field.Value = d.fieldValue(n.field.Type, inh.value)

	d.nodes[name] = n
	d.order = append(d.order, name)
}

// inherit merges the inheritable entries of dict over those of its ancestors
func (d *Document) inherit(dict types.Dict, inh inherited) inherited {
	if ftObj, found := dict.Find("FT"); found {
		if ft, err := d.ctx.DereferenceName(ftObj, model.V10, nil); err == nil {
			inh.ft = ft
		}
	}
	if ffObj, found := dict.Find("Ff"); found {
		if ff, err := d.ctx.DereferenceInteger(ffObj); err == nil && ff != nil {
			inh.ff = ff.Value()
		}
	}
	if optObj, found := dict.Find("Opt"); found {
		if opt, err := d.ctx.DereferenceArray(optObj); err == nil {
			inh.opt = opt
		}
	}
	if maxLenObj, found := dict.Find("MaxLen"); found {
		if maxLen, err := d.ctx.DereferenceInteger(maxLenObj); err == nil && maxLen != nil {
			inh.maxLen = maxLen.Value()
		}
	}
	if v, found := dict.Find("V"); found {
		inh.value = v
	}
	return inh
}

// fieldType determines the field type from FT and the field flags
func fieldType(ft types.Name, ff int) FieldType {
	switch ft {
	case "Btn":
		if ff&flagRadio != 0 {
			return FieldTypeRadio
		} else if ff&flagPushbutton != 0 {
			return FieldTypeButton
		}
		return FieldTypeCheckbox
	case "Tx":
		return FieldTypeText
	case "Ch":
		if ff&flagCombo != 0 {
			return FieldTypeDropdown
		}
		return FieldTypeListbox
	case "Sig":
		return FieldTypeSignature
	default:
		return FieldTypeUnknown
	}
}

// fieldValue renders V as a string: text for text and choice fields, the state name for buttons
func (d *Document) fieldValue(ft FieldType, valueObj types.Object) string {
	if valueObj == nil {
		return ""
	}

	switch ft {
	case FieldTypeCheckbox, FieldTypeRadio:
		if name, err := d.ctx.DereferenceName(valueObj, model.V10, nil); err == nil {
			return string(name)
		}
	case FieldTypeText, FieldTypeDropdown, FieldTypeListbox:
		if val, err := d.ctx.DereferenceStringOrHexLiteral(valueObj, model.V10, nil); err == nil {
			return val
		}
		if arr, err := d.ctx.DereferenceArray(valueObj); err == nil && len(arr) > 0 {
			if val, err := d.ctx.DereferenceStringOrHexLiteral(arr[0], model.V10, nil); err == nil {
				return val
			}
		}
	}
	return ""
}

// onStates returns the appearance state names other than Off across all widgets.
// Checkboxes without appearance streams fall back to Yes.
func (d *Document) onStates(widgets []types.Dict) []string {
	var states []string
	seen := make(map[string]bool)

	for _, w := range widgets {
		state := d.widgetOnState(w)
		if state == "" || seen[state] {
			continue
		}
		seen[state] = true
		states = append(states, state)
	}

	if len(states) == 0 {
		states = append(states, defaultOnState)
	}
	return states
}

// widgetOnState returns the first non-Off key of the widget's normal appearance dictionary
func (d *Document) widgetOnState(widget types.Dict) string {
	apObj, found := widget.Find("AP")
	if !found {
		return ""
	}
	ap, err := d.ctx.DereferenceDict(apObj)
	if err != nil || ap == nil {
		return ""
	}

	for _, key := range []string{"N", "D"} {
		obj, found := ap.Find(key)
		if !found {
			continue
		}
		states, err := d.ctx.DereferenceDict(obj)
		if err != nil || states == nil {
			continue
		}

		keys := make([]string, 0, len(states))
		for k := range states {
			if k != offState {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			sort.Strings(keys)
			return keys[0]
		}
	}
	return ""
}

// options reads a choice Opt array: plain strings or [export display] pairs
func (d *Document) options(opt types.Array) []option {
	var out []option
	for _, o := range opt {
		if s, err := d.ctx.DereferenceStringOrHexLiteral(o, model.V10, nil); err == nil {
			out = append(out, option{export: s, display: s})
			continue
		}
		pair, err := d.ctx.DereferenceArray(o)
		if err != nil || len(pair) < 2 {
			continue
		}
		export, err1 := d.ctx.DereferenceStringOrHexLiteral(pair[0], model.V10, nil)
		display, err2 := d.ctx.DereferenceStringOrHexLiteral(pair[1], model.V10, nil)
		if err1 == nil && err2 == nil {
			out = append(out, option{export: export, display: display})
		}
	}
	return out
}

// annotationPages maps annotation object numbers to 1-based page numbers
func (d *Document) annotationPages(rootDict types.Dict) map[int]int {
	out := make(map[int]int)

	pagesObj, found := rootDict.Find("Pages")
	if !found {
		return out
	}

	pageNr := 0
	var visit func(obj types.Object, depth int)
	visit = func(obj types.Object, depth int) {
		if depth > maxFieldDepth {
			return
		}
		dict, err := d.ctx.DereferenceDict(obj)
		if err != nil || dict == nil {
			return
		}

		if kidsObj, found := dict.Find("Kids"); found {
			if typ := dict.NameEntry("Type"); typ == nil || *typ == "Pages" {
				if kids, err := d.ctx.DereferenceArray(kidsObj); err == nil {
					for _, kid := range kids {
						visit(kid, depth+1)
					}
				}
				return
			}
		}

		pageNr++
		if nr := objectNumber(obj); nr > 0 {
			out[-nr] = pageNr
		}
		if annotsObj, found := dict.Find("Annots"); found {
			if annots, err := d.ctx.DereferenceArray(annotsObj); err == nil {
				for _, a := range annots {
					if nr := objectNumber(a); nr > 0 {
						out[nr] = pageNr
					}
				}
			}
		}
	}
	visit(pagesObj, 0)

	return out
}

// widgetPage resolves a page through the widgets' P entries. Page objects are
// stored under their negated object number.
func (d *Document) widgetPage(widgets []types.Dict, pages map[int]int) int {
	for _, w := range widgets {
		if pObj, found := w.Find("P"); found {
			if nr := objectNumber(pObj); nr > 0 {
				if page, ok := pages[-nr]; ok {
					return page
				}
			}
		}
	}
	return 0
}

// stringEntry returns a string or hex literal entry of dict
func (d *Document) stringEntry(dict types.Dict, key string) string {
	obj, found := dict.Find(key)
	if !found {
		return ""
	}
	s, err := d.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

// objectNumber returns the object number of an indirect reference, or 0
func objectNumber(obj types.Object) int {
	switch ref := obj.(type) {
	case types.IndirectRef:
		return ref.ObjectNumber.Value()
	case *types.IndirectRef:
		if ref != nil {
			return ref.ObjectNumber.Value()
		}
	}
	return 0
}
