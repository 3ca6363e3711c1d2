// Package validator provides a small validation abstraction for
// configuration and topic-builder structs.
//
// Domain code should depend on the Validator interface so validation stays
// consistent and swappable. Concrete implementations (for example
// go-playground/validator v10) live in this package.
package validator

// Validator validates a struct, typically using field tags.
type Validator interface {
	Validate(data any) error
}
