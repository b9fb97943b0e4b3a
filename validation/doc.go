// Package validation provides struct-tag input validation for request
// payloads using go-playground/validator.
//
// Inputs are validated before any network call, so obviously invalid
// payloads (empty comment, malformed email) never leave the client.
//
// # Usage
//
//	type CommentInput struct {
//		Content string `json:"content" validate:"required,max=500"`
//	}
//
//	if err := validation.Validate(input); err != nil { ... }
package validation
