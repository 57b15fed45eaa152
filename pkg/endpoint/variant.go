package endpoint

import "fmt"

// VariantPatch is a partial update of a variant; nil fields keep their value.
type VariantPatch struct {
	Name       *string `json:"name,omitempty"`
	StatusCode *int    `json:"statusCode,omitempty"`
	Body       *string `json:"body,omitempty"`
}

func (e *Endpoint) findVariant(id string) int {
	for i := range e.Variants {
		if e.Variants[i].ID == id {
			return i
		}
	}
	return -1
}

// Variant returns the variant with the given id.
func (e *Endpoint) Variant(id string) (Variant, bool) {
	if i := e.findVariant(id); i >= 0 {
		return e.Variants[i], true
	}
	return Variant{}, false
}

// ActiveVariant returns the selected variant when the selection refers to an
// existing variant. A dangling selection behaves as no selection.
func (e *Endpoint) ActiveVariant() (Variant, bool) {
	if e.ActiveVariantID == "" {
		return Variant{}, false
	}
	return e.Variant(e.ActiveVariantID)
}

// AddVariant appends "Variant N" with status 200 and a copy of the endpoint body.
func (e *Endpoint) AddVariant() Variant {
	v := Variant{
		ID:         NewID(),
		Name:       fmt.Sprintf("Variant %d", len(e.Variants)+1),
		StatusCode: 200,
		Body:       e.Body,
	}
	e.Variants = append(e.Variants, v)
	return v
}

// UpdateVariant applies patch to the variant with the given id.
func (e *Endpoint) UpdateVariant(id string, patch VariantPatch) (Variant, error) {
	i := e.findVariant(id)
	if i < 0 {
		return Variant{}, fmt.Errorf("%w: %s", ErrVariantNotFound, id)
	}
	v := &e.Variants[i]
	if patch.Name != nil {
		v.Name = *patch.Name
	}
	if patch.StatusCode != nil {
		v.StatusCode = *patch.StatusCode
	}
	if patch.Body != nil {
		v.Body = *patch.Body
	}
	return *v, nil
}

// DeleteVariant removes a variant. Removing the active variant clears the selection.
func (e *Endpoint) DeleteVariant(id string) error {
	i := e.findVariant(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrVariantNotFound, id)
	}
	e.Variants = append(e.Variants[:i], e.Variants[i+1:]...)
	if e.ActiveVariantID == id {
		e.ActiveVariantID = ""
	}
	return nil
}

// SelectVariant marks a variant active. An empty id returns to the base response.
func (e *Endpoint) SelectVariant(id string) error {
	if id == "" {
		e.ActiveVariantID = ""
		return nil
	}
	if e.findVariant(id) < 0 {
		return fmt.Errorf("%w: %s", ErrVariantNotFound, id)
	}
	e.ActiveVariantID = id
	return nil
}

// Effective returns the status and body the endpoint currently responds with.
func (e *Endpoint) Effective() (int, string) {
	if v, ok := e.ActiveVariant(); ok {
		return v.StatusCode, v.Body
	}
	return e.StatusCode, e.Body
}
