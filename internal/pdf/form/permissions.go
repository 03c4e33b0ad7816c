package form

import "github.com/a3tai/casedocs/internal/pdf/security"

// Encrypted reports whether the document carries an encryption dictionary
func (d *Document) Encrypted() bool {
	return d.ctx.Encrypt != nil
}

// Permissions returns the user access permissions of the document.
// Unencrypted documents, and encryption dictionaries without P, grant everything.
func (d *Document) Permissions() security.Permissions {
	if d.ctx.Encrypt == nil {
		return security.NewFullPermissions()
	}

	dict, err := d.ctx.DereferenceDict(*d.ctx.Encrypt)
	if err != nil || dict == nil {
		return security.NewFullPermissions()
	}
	p := dict.IntEntry("P")
	if p == nil {
		return security.NewFullPermissions()
	}
	return security.NewPermissions(int32(*p))
}
