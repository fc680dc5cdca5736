// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package wallet

// ErrorKind identifies a kind of error that can be used to define new errors
// via const SomeError = wallet.ErrorKind("something"). ErrorKind values are the
// identifiers handed to the UI layer, which resolves them into display text.
type ErrorKind string

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Expected failure kinds shared by the chain drivers and the core. Drivers may
// return other kinds, these are just the ones the core itself reasons about.
const (
	ErrInsufficientBalance  ErrorKind = "InsufficientBalance"
	ErrInvalidAddress       ErrorKind = "InvalidAddress"
	ErrInvalidAmount        ErrorKind = "InvalidAmount"
	ErrDomainNotResolved    ErrorKind = "DomainNotResolved"
	ErrWalletNotInitialized ErrorKind = "WalletNotInitialized"
	ErrInvalidPassword      ErrorKind = "InvalidPassword"
	ErrUnsupportedVersion   ErrorKind = "UnsupportedVersion"
	ErrServerError          ErrorKind = "ServerError"
	ErrDebugError           ErrorKind = "DebugError"
	ErrUnexpected           ErrorKind = "Unexpected"
	ErrNotSupported         ErrorKind = "NotSupported"
	ErrPartialTransaction   ErrorKind = "PartialTransactionFailure"
	ErrInvalidPayload       ErrorKind = "InvalidPayload"
	ErrInvalidMnemonic      ErrorKind = "InvalidMnemonic"
)

// Error pairs an error with details.
type Error struct {
	wrapped error
	detail  string
}

// Error satisfies the error interface, combining the wrapped error message with
// the details.
func (e Error) Error() string {
	return e.wrapped.Error() + ": " + e.detail
}

// Unwrap returns the wrapped error, allowing errors.Is and errors.As to work.
func (e Error) Unwrap() error {
	return e.wrapped
}

// NewError wraps the provided Error with details in a Error, facilitating the
// use of errors.Is and errors.As via errors.Unwrap.
func NewError(err error, detail string) Error {
	return Error{
		wrapped: err,
		detail:  detail,
	}
}

// Result is the outcome of an operation whose expected failures (bad address,
// insufficient funds, rejected draft) are values rather than errors. A Result
// with a non-empty Err carries no meaningful Value. Unexpected failures are
// never put in a Result; they travel as the accompanying error return.
type Result[T any] struct {
	Value T
	Err   ErrorKind
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail creates a failed Result of the given kind.
func Fail[T any](kind ErrorKind) Result[T] {
	return Result[T]{Err: kind}
}

// Failed is true if the Result carries an error kind.
func (r Result[T]) Failed() bool {
	return r.Err != ""
}

// FailAs converts a failed Result into a failed Result of another type.
func FailAs[U, T any](r Result[T]) Result[U] {
	return Result[U]{Err: r.Err}
}

// ErrorCloser is used to synchronize shutdown when an error is encountered in a
// multi-step process. After each successful step, a shutdown routine can be
// scheduled with Add. If Success is not signaled before Done, the shutdown
// routines will be run in the reverse order that they are added.
type ErrorCloser struct {
	closers []func() error
}

// NewErrorCloser creates a new ErrorCloser.
func NewErrorCloser() *ErrorCloser {
	return &ErrorCloser{
		closers: make([]func() error, 0, 3),
	}
}

// Add adds a new function to the queue. If Success is not called before Done,
// the Add'ed functions will be run in the reverse order that they were added.
func (e *ErrorCloser) Add(closer func() error) {
	e.closers = append(e.closers, closer)
}

// Success cancels the running of any Add'ed functions.
func (e *ErrorCloser) Success() {
	e.closers = nil
}

// Done signals that the ErrorClose can run its registered functions if success
// has not yet been flagged.
func (e *ErrorCloser) Done(log Logger) {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			log.Errorf("error running shutdown function %d: %v", i, err)
		}
	}
}
