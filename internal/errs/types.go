package errs

type ErrorMessage struct {
	Message string
}

func (e *ErrorMessage) Error() string { return e.Message }

type NotFoundError struct {
	ErrorMessage
}

type AlreadyExistsError struct {
	ErrorMessage
}

type ValidationError struct {
	ErrorMessage
}

type DatabaseError struct {
	ErrorMessage
	Operation string
}

// AuthExchangeError means the OAuth authorization code was invalid or
// expired. The connection never activates; the user has to re-link.
type AuthExchangeError struct {
	ErrorMessage
	Provider string
}

// TokenRefreshUnavailableError is terminal for a connection: the provider
// issued no refresh token and the access token has expired. Retrying
// cannot help; only a user re-authorization can.
type TokenRefreshUnavailableError struct {
	ErrorMessage
	Provider string
}

// ProviderUnavailableError covers transient transport and 5xx failures.
// The scheduler retries on its normal cadence.
type ProviderUnavailableError struct {
	ErrorMessage
	Provider string
}

// ProviderDataError means the provider answered but the payload could not
// be understood. Raw carries the offending body for diagnosis.
type ProviderDataError struct {
	ErrorMessage
	Provider string
	Raw      string
}

// ReconciliationConflictError marks an incoming provider account that
// matched more than one canonical account at the same tier. The account
// is skipped rather than guessed at.
type ReconciliationConflictError struct {
	ErrorMessage
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewAlreadyExistsError(message string) *AlreadyExistsError {
	return &AlreadyExistsError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}

func NewDatabaseError(operation, message string) *DatabaseError {
	return &DatabaseError{
		ErrorMessage: ErrorMessage{Message: message},
		Operation:    operation,
	}
}

func NewAuthExchangeError(provider, message string) *AuthExchangeError {
	return &AuthExchangeError{
		ErrorMessage: ErrorMessage{Message: message},
		Provider:     provider,
	}
}

func NewTokenRefreshUnavailableError(provider, message string) *TokenRefreshUnavailableError {
	return &TokenRefreshUnavailableError{
		ErrorMessage: ErrorMessage{Message: message},
		Provider:     provider,
	}
}

func NewProviderUnavailableError(provider, message string) *ProviderUnavailableError {
	return &ProviderUnavailableError{
		ErrorMessage: ErrorMessage{Message: message},
		Provider:     provider,
	}
}

func NewProviderDataError(provider, message, raw string) *ProviderDataError {
	return &ProviderDataError{
		ErrorMessage: ErrorMessage{Message: message},
		Provider:     provider,
		Raw:          raw,
	}
}

func NewReconciliationConflictError(message string) *ReconciliationConflictError {
	return &ReconciliationConflictError{
		ErrorMessage: ErrorMessage{Message: message},
	}
}
