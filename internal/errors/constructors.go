package errors

// Convenience functions for common error patterns

// Configuration errors

func ConfigNotFound(path string) *BookVersionsError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *BookVersionsError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *BookVersionsError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Resolution errors

func CycleDetected(version string, bound int) *BookVersionsError {
	return New(CategoryCycle, SeverityError, "preceding version chain does not terminate").
		WithContext("version", version).
		WithContext("bound", bound)
}

func ResolutionGap(library, version, reason string) *BookVersionsError {
	return New(CategoryResolution, SeverityWarning, "library version unresolved").
		WithContext("library", library).
		WithContext("version", version).
		WithContext("reason", reason)
}

// Storage errors

func WriteFailed(ref string, cause error) *BookVersionsError {
	return Wrap(cause, CategoryStorage, SeverityError, "document write failed").
		WithContext("reference", ref)
}

func StoreUnavailable(operation string, cause error) *BookVersionsError {
	return WrapRetryable(cause, CategoryStorage, SeverityWarning, "document store unavailable").
		WithContext("operation", operation)
}

func NotFound(ref string) *BookVersionsError {
	return New(CategoryNotFound, SeverityError, "document not found").
		WithContext("reference", ref)
}

// Authorization errors

func PermissionDenied(user, right, ref string) *BookVersionsError {
	return New(CategoryPermission, SeverityError, "permission denied").
		WithContext("user", user).
		WithContext("right", right).
		WithContext("reference", ref)
}

// Internal errors

func InternalError(message string, cause error) *BookVersionsError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
