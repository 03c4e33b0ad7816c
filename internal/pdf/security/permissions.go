package security

import (
	"fmt"
	"strings"
)

// Permissions are the user access bits of an encrypted document's P entry
// (PDF 32000-1, table 22). Bit numbers count from 1.
type Permissions struct {
	Print            bool // Bit 3
	Modify           bool // Bit 4
	Copy             bool // Bit 5
	Annotate         bool // Bit 6 - add or modify annotations, fill in form fields
	FillForms        bool // Bit 9 - fill in existing form fields even when bit 6 is clear
	Extract          bool // Bit 10
	Assemble         bool // Bit 11
	PrintHighQuality bool // Bit 12
}

// NewPermissions decodes a P value
func NewPermissions(perms int32) Permissions {
	return Permissions{
		Print:            (perms & 0x04) != 0,
		Modify:           (perms & 0x08) != 0,
		Copy:             (perms & 0x10) != 0,
		Annotate:         (perms & 0x20) != 0,
		FillForms:        (perms & 0x200) != 0,
		Extract:          (perms & 0x400) != 0,
		Assemble:         (perms & 0x800) != 0,
		PrintHighQuality: (perms & 0x1000) != 0,
	}
}

// NewFullPermissions returns the permissions of an unencrypted document
func NewFullPermissions() Permissions {
	return Permissions{
		Print:            true,
		Modify:           true,
		Copy:             true,
		Annotate:         true,
		FillForms:        true,
		Extract:          true,
		Assemble:         true,
		PrintHighQuality: true,
	}
}

// CanFillForms reports whether interactive form fields may be filled
func (p Permissions) CanFillForms() bool {
	return p.FillForms || p.Annotate
}

// Denied lists the operations that are not granted
func (p Permissions) Denied() []string {
	var denied []string
	for _, op := range p.operations() {
		if !op.allowed {
			denied = append(denied, op.name)
		}
	}
	return denied
}

// String returns a human-readable representation of the permissions
func (p Permissions) String() string {
	var allowed []string
	for _, op := range p.operations() {
		if op.allowed {
			allowed = append(allowed, op.name)
		}
	}
	if len(allowed) == 0 {
		return "No permissions granted"
	}
	return fmt.Sprintf("Allowed: %s", strings.Join(allowed, ", "))
}

type operation struct {
	name    string
	allowed bool
}

func (p Permissions) operations() []operation {
	return []operation{
		{"print", p.Print},
		{"modify", p.Modify},
		{"copy", p.Copy},
		{"annotate", p.Annotate},
		{"fill_forms", p.FillForms},
		{"extract", p.Extract},
		{"assemble", p.Assemble},
		{"print_high_quality", p.PrintHighQuality},
	}
}
