package form

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/unicode"
)

var utf16BOM = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// SetText writes the value of a text field, or of an editable dropdown
func (d *Document) SetText(name, value string) error {
	n, err := d.writable(name)
	if err != nil {
		return err
	}
	if !n.field.AcceptsText() {
		return fmt.Errorf("%s is a %s field: %w", name, n.field.Type, ErrTypeMismatch)
	}

	encoded, err := encodeText(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", name, err)
	}

	n.dict.Update("V", encoded)
	d.dropAppearances(n)
	n.field.Value = value
	d.dirty = true
	return nil
}

// Check turns a checkbox on, using the on state its widgets define
func (d *Document) Check(name string) error {
	n, err := d.writable(name)
	if err != nil {
		return err
	}
	if !n.field.AcceptsCheck() {
		return fmt.Errorf("%s is a %s field: %w", name, n.field.Type, ErrTypeMismatch)
	}

	on := n.field.OnState
	n.dict.Update("V", types.Name(on))
	for _, w := range n.widgets {
		state := d.widgetOnState(w)
		if state == "" {
			state = on
		}
		w.Update("AS", types.Name(state))
	}

	n.field.Value = on
	d.dirty = true
	return nil
}

// Select chooses an option of a radio group, dropdown or list box.
// Options match case-insensitively on export or display value.
func (d *Document) Select(name, value string) error {
	n, err := d.writable(name)
	if err != nil {
		return err
	}

	switch n.field.Type {
	case FieldTypeRadio:
		return d.selectRadio(n, value)
	case FieldTypeDropdown, FieldTypeListbox:
		return d.selectChoice(n, value)
	default:
		return fmt.Errorf("%s is a %s field: %w", name, n.field.Type, ErrTypeMismatch)
	}
}

func (d *Document) selectRadio(n *node, value string) error {
	state := ""
	for _, s := range n.field.Options {
		if strings.EqualFold(s, value) {
			state = s
			break
		}
	}
	if state == "" {
		return fmt.Errorf("%s has no option %q (have %s): %w",
			n.field.Name, value, strings.Join(n.field.Options, ", "), ErrOptionNotFound)
	}

	n.dict.Update("V", types.Name(state))
	for _, w := range n.widgets {
		if d.widgetOnState(w) == state {
			w.Update("AS", types.Name(state))
		} else {
			w.Update("AS", types.Name(offState))
		}
	}

	n.field.Value = state
	d.dirty = true
	return nil
}

func (d *Document) selectChoice(n *node, value string) error {
	var chosen *option
	for i := range n.opts {
		o := &n.opts[i]
		if strings.EqualFold(o.export, value) || strings.EqualFold(o.display, value) {
			chosen = o
			break
		}
	}

	if chosen == nil {
		if n.field.Editable {
			return d.SetText(n.field.Name, value)
		}
		return fmt.Errorf("%s has no option %q (have %s): %w",
			n.field.Name, value, strings.Join(n.field.Options, ", "), ErrOptionNotFound)
	}

	encoded, err := encodeText(chosen.export)
	if err != nil {
		return fmt.Errorf("failed to encode option for %s: %w", n.field.Name, err)
	}

	n.dict.Update("V", encoded)
	d.dropAppearances(n)
	n.field.Value = chosen.export
	d.dirty = true
	return nil
}

func (d *Document) writable(name string) (*node, error) {
	n, ok := d.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrFieldNotFound)
	}
	if n.field.ReadOnly {
		return nil, fmt.Errorf("%s: %w", name, ErrReadOnly)
	}
	return n, nil
}

// dropAppearances removes stale appearance streams so viewers regenerate them
func (d *Document) dropAppearances(n *node) {
	for _, w := range n.widgets {
		w.Delete("AP")
	}
}

// encodeText produces a hex string: raw bytes for ASCII, UTF-16BE with BOM otherwise
func encodeText(s string) (types.HexLiteral, error) {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return types.NewHexLiteral([]byte(s)), nil
	}

	b, err := utf16BOM.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return "", err
	}
	return types.NewHexLiteral(b), nil
}

// finalize marks the form for appearance regeneration once any value was written.
// XFA data would take precedence over the AcroForm values in some viewers, so it is removed.
func (d *Document) finalize() {
	if !d.dirty || d.acroForm == nil {
		return
	}
	d.acroForm.Update("NeedAppearances", types.Boolean(true))
	d.acroForm.Delete("XFA")
}

// Write serializes the document to w
func (d *Document) Write(w io.Writer) error {
	d.finalize()

	if err := api.WriteContext(d.ctx, w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// Bytes serializes the document into memory
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
