package customer

import (
	"github.com/samber/mo"
)

// Patch is a partial update. A field set to mo.None is left unchanged;
// a field set to mo.Some("") is an explicit (and invalid) empty value.
type Patch struct {
	Name    mo.Option[string]
	Email   mo.Option[string]
	Phone   mo.Option[string]
	Address mo.Option[string]
}

type patchEntry struct {
	name  string
	value mo.Option[string]
}

func (p Patch) entries() []patchEntry {
	return []patchEntry{
		{FieldName, p.Name},
		{FieldEmail, p.Email},
		{FieldPhone, p.Phone},
		{FieldAddress, p.Address},
	}
}

// IsEmpty reports whether no field is present
func (p Patch) IsEmpty() bool {
	for _, e := range p.entries() {
		if e.value.IsPresent() {
			return false
		}
	}
	return true
}

// Fields returns the names of the present fields in a stable order
func (p Patch) Fields() []string {
	var fields []string
	for _, e := range p.entries() {
		if e.value.IsPresent() {
			fields = append(fields, e.name)
		}
	}
	return fields
}

// Normalize validates every present field with the same rules as creation
// and returns a copy holding the trimmed values.
func (p Patch) Normalize() (Patch, error) {
	out := p
	var err error
	if out.Name, err = normalizeOption(p.Name, validateName); err != nil {
		return Patch{}, err
	}
	if out.Email, err = normalizeOption(p.Email, validateEmail); err != nil {
		return Patch{}, err
	}
	if out.Phone, err = normalizeOption(p.Phone, validatePhone); err != nil {
		return Patch{}, err
	}
	if out.Address, err = normalizeOption(p.Address, validateAddress); err != nil {
		return Patch{}, err
	}
	return out, nil
}

func normalizeOption(opt mo.Option[string], check func(string) (string, error)) (mo.Option[string], error) {
	v, ok := opt.Get()
	if !ok {
		return opt, nil
	}
	v, err := check(v)
	if err != nil {
		return mo.None[string](), err
	}
	return mo.Some(v), nil
}

// OptionFromPtr converts a nullable value into an option: nil is absent,
// anything else (including "") is present.
func OptionFromPtr(v *string) mo.Option[string] {
	if v == nil {
		return mo.None[string]()
	}
	return mo.Some(*v)
}
