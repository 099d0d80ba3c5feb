package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for firewrite operations.
var (
	// ErrInvalidArgument classifies caller-input errors. Both create-path
	// validation errors satisfy errors.Is(err, ErrInvalidArgument).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDeleteOnCreate indicates a delete sentinel in create data.
	ErrDeleteOnCreate = &InvalidArgumentError{msg: "DELETE not allowed on create"}

	// ErrUnsupportedValue indicates a scalar the encoder cannot represent.
	ErrUnsupportedValue = errors.New("unsupported value type")

	// ErrNonNumericOperand indicates an increment/maximum/minimum operand that is not a number.
	ErrNonNumericOperand = errors.New("transform operand must be an integer or float")

	// ErrInvalidDocumentPath indicates a document path with an odd or zero segment count.
	ErrInvalidDocumentPath = errors.New("invalid document path")

	// ErrInvalidFieldPath indicates a field path string that cannot be parsed.
	ErrInvalidFieldPath = errors.New("invalid field path")

	// ErrDocumentExists indicates an exists:false precondition on an existing document.
	ErrDocumentExists = errors.New("document already exists")

	// ErrDocumentNotFound indicates a missing document.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrEmptyWrite indicates a write with no operation set.
	ErrEmptyWrite = errors.New("write has no operation")
)

// InvalidArgumentError is a caller-input error whose message is part of the
// observable contract. Not retryable.
type InvalidArgumentError struct {
	msg string
}

func (e *InvalidArgumentError) Error() string {
	return e.msg
}

// Is makes every InvalidArgumentError match ErrInvalidArgument.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// NestedUnderArrayError reports a transform sentinel found inside a sequence.
func NestedUnderArrayError(kind TransformKind) error {
	return &InvalidArgumentError{msg: fmt.Sprintf("cannot nest %s under arrays", kind)}
}
