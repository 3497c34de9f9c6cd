package modelq

import (
	"errors"

	"github.com/modelkit/modelq/logger"
	"github.com/modelkit/modelq/schema"
)

var (
	// ErrRecordNotFound record not found error, shared with the logger so
	// trace output can suppress it
	ErrRecordNotFound = logger.ErrRecordNotFound
	// ErrAdapterRequired no adapter was supplied to Open
	ErrAdapterRequired = errors.New("adapter required")
	// ErrInvalidQuery the query chain carries an unusable state
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidAttribute attribute expression cannot be resolved
	ErrInvalidAttribute = errors.New("invalid attribute")
	// ErrJoinNotFound join target model has no association with this model
	ErrJoinNotFound = errors.New("no association found for join")
	// ErrJoinAmbiguous join target model matches more than one association
	ErrJoinAmbiguous = errors.New("ambiguous association for join")
	// ErrNotSupported operation not supported for this model shape
	ErrNotSupported = errors.New("not supported")

	// Resolution errors shared with the schema package.
	ErrModelNotFound        = schema.ErrModelNotFound
	ErrFieldNotFound        = schema.ErrFieldNotFound
	ErrNoAssociation        = schema.ErrNoAssociation
	ErrAmbiguousAssociation = schema.ErrAmbiguousAssociation
	ErrUnsupportedMapping   = schema.ErrUnsupportedMapping
)
