package users

// Error is an application-layer error that can be mapped to an HTTP response.
// Kind, when set, is the repository sentinel the error was derived from.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any

	Kind error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}
