package strategy

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-modelxml/xmltree"
)

// Sentinels for the failure modes of serialization. Returned errors wrap them with
// category and text code metadata; match with errors.Is.
var (
	// ErrMalformedInput means the tree cannot be read at all.
	ErrMalformedInput = xmltree.ErrMalformed
	// ErrModelResolution means a tag name does not map to a known model type.
	ErrModelResolution = errors.New("model type cannot be resolved")
	// ErrUnknownField means an incoming child element is not a field of the target model.
	ErrUnknownField = errors.New("unknown field")
	// ErrNoModel means no model was bound to a serialize or update call.
	ErrNoModel = errors.New("no model bound")
	// ErrNotImplemented is returned by update-in-place on formats that do not support it.
	ErrNotImplemented = errors.New("not implemented")
	// ErrReferenceResolution means the resolver could not produce a model for a reference.
	ErrReferenceResolution = errors.New("reference cannot be resolved")
	// ErrCyclicModel means a model-valued field points back to an ancestor that cannot
	// be written as a reference.
	ErrCyclicModel = errors.New("cyclic model graph")
)

const (
	CodeMalformedInput      = "MALFORMED_INPUT"
	CodeModelResolution     = "MODEL_RESOLUTION"
	CodeUnknownField        = "UNKNOWN_FIELD"
	CodeNoModel             = "NO_MODEL"
	CodeNotImplemented      = "NOT_IMPLEMENTED"
	CodeReferenceResolution = "REFERENCE_RESOLUTION"
	CodeCyclicModel         = "CYCLIC_MODEL"
)

func malformed(cause error, msg string) error {
	if cause == nil {
		cause = ErrMalformedInput
	}
	return goerrors.Wrap(cause, goerrors.CategoryBadInput, msg).
		WithTextCode(CodeMalformedInput)
}

func modelResolution(cause error, typeName string) error {
	return goerrors.Wrap(errors.Join(ErrModelResolution, cause), goerrors.CategoryBadInput, "unknown model type "+typeName).
		WithTextCode(CodeModelResolution).
		WithMetadata(map[string]any{"type": typeName})
}

func unknownField(typeName, field string) error {
	return goerrors.Wrap(ErrUnknownField, goerrors.CategoryBadInput, "unknown field "+field+" on "+typeName).
		WithTextCode(CodeUnknownField).
		WithMetadata(map[string]any{"type": typeName, "field": field})
}

func noModel(op string) error {
	return goerrors.Wrap(ErrNoModel, goerrors.CategoryBadInput, op+": no model bound").
		WithTextCode(CodeNoModel)
}

func notImplemented(op string, kind Kind) error {
	return goerrors.Wrap(ErrNotImplemented, goerrors.CategoryOperation, op+" is not supported by "+kind.String()).
		WithTextCode(CodeNotImplemented).
		WithMetadata(map[string]any{"version": kind.Version()})
}

func referenceResolution(cause error, token string) error {
	return goerrors.Wrap(errors.Join(ErrReferenceResolution, cause), goerrors.CategoryNotFound, "cannot resolve "+token).
		WithTextCode(CodeReferenceResolution).
		WithMetadata(map[string]any{"href": token})
}

func cyclic(typeName, field string) error {
	return goerrors.Wrap(ErrCyclicModel, goerrors.CategoryBadInput, "field "+field+" re-enters "+typeName).
		WithTextCode(CodeCyclicModel).
		WithMetadata(map[string]any{"type": typeName, "field": field})
}

func fieldError(cause error, typeName, field string) error {
	return goerrors.Wrap(errors.Join(ErrMalformedInput, cause), goerrors.CategoryBadInput, "cannot set "+typeName+"."+field).
		WithTextCode(CodeMalformedInput).
		WithMetadata(map[string]any{"type": typeName, "field": field})
}
