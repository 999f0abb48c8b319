package instance

import (
	"errors"
	"fmt"
)

// Error kinds returned by this package. Match them with errors.Is.
var (
	ErrRead   = errors.New("read error")
	ErrWrite  = errors.New("write error")
	ErrDecode = errors.New("decode error")
)

// FileError records a failed operation on one instance file.
type FileError struct {
	Kind error // ErrRead, ErrWrite or ErrDecode
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

func (e *FileError) Is(target error) bool { return target == e.Kind }

func readError(path string, err error) error {
	return &FileError{Kind: ErrRead, Path: path, Err: err}
}

func writeError(path string, err error) error {
	return &FileError{Kind: ErrWrite, Path: path, Err: err}
}

func decodeError(path string, err error) error {
	return &FileError{Kind: ErrDecode, Path: path, Err: err}
}
