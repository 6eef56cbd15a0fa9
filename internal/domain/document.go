// Package domain contains the tourbook document types: tours, users and reviews.
package domain

// Document holds the fields every stored document carries.
type Document struct {
	ID string `json:"id" bson:"_id"`
	// V is the internal document version. Rendered only when explicitly projected.
	V int `json:"__v" bson:"__v"`
}

// GetID returns the document identifier.
func (d *Document) GetID() string { return d.ID }

// SetID assigns the document identifier.
func (d *Document) SetID(id string) { d.ID = id }

// Defaulter is implemented by documents that fill defaults before insert.
type Defaulter interface {
	SetDefaults()
}

// Loader is implemented by documents with derived fields computed after load.
type Loader interface {
	AfterLoad()
}
