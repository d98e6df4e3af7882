package sessionvars

import "github.com/sessionvars/sessionvars/internal/apperr"

// ErrCode enumerates every user-visible failure the store can return. See
// spec §7: these four families cover every error condition.
type ErrCode = apperr.Code

// Error codes, re-exported from the internal apperr package so the
// engine (which cannot import this package) and the public API share one
// definition.
const (
	InternalErr              = apperr.Internal
	InvalidParameter         = apperr.InvalidParameter
	UnknownPackage           = apperr.UnknownPackage
	UnknownVariable          = apperr.UnknownVariable
	TypeMismatch             = apperr.TypeMismatch
	KindMismatch             = apperr.KindMismatch
	TransactionalityConflict = apperr.TransactionalityConflict
	FeatureNotSupported      = apperr.FeatureNotSupported
)

// Error is the error type returned by every callable in this module.
type Error = apperr.Error

// IsUnknownPackage reports whether err is an UnknownPackage *Error.
func IsUnknownPackage(err error) bool { return apperr.Is(err, UnknownPackage) }

// IsUnknownVariable reports whether err is an UnknownVariable *Error.
func IsUnknownVariable(err error) bool { return apperr.Is(err, UnknownVariable) }

// IsTypeMismatch reports whether err is a TypeMismatch *Error.
func IsTypeMismatch(err error) bool { return apperr.Is(err, TypeMismatch) }

// IsKindMismatch reports whether err is a KindMismatch *Error.
func IsKindMismatch(err error) bool { return apperr.Is(err, KindMismatch) }

// IsTransactionalityConflict reports whether err is a
// TransactionalityConflict *Error.
func IsTransactionalityConflict(err error) bool {
	return apperr.Is(err, TransactionalityConflict)
}

// IsFeatureNotSupported reports whether err is a FeatureNotSupported
// *Error.
func IsFeatureNotSupported(err error) bool { return apperr.Is(err, FeatureNotSupported) }

// IsInvalidParameter reports whether err is an InvalidParameter *Error.
func IsInvalidParameter(err error) bool { return apperr.Is(err, InvalidParameter) }

func invalidParamf(format string, args ...interface{}) error {
	return apperr.InvalidParamf(format, args...)
}

func typeMismatchf(format string, args ...interface{}) error {
	return apperr.TypeMismatchf(format, args...)
}

func apperrFeatureNotSupportedf(format string, args ...interface{}) error {
	return apperr.FeatureNotSupportedf(format, args...)
}
