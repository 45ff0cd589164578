package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/navicue/internal/catalog"
	"github.com/roach88/navicue/internal/lesson"
)

// builtinCatalog names the embedded catalog in output.
const builtinCatalog = "(built-in)"

// loadCatalog loads the catalog in dir, or the built-in catalog when dir
// is empty. A nil catalog means loading failed outright; otherwise errs
// lists the lessons that did not compile.
func loadCatalog(dir string, mode catalog.LoadMode) (*catalog.Catalog, []error) {
	if dir != "" {
		return catalog.Load(dir, mode)
	}

	cat, err := catalog.Builtin()
	if err == nil {
		return cat, nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return nil, joined.Unwrap()
	}
	return nil, []error{err}
}

// catalogName returns dir, or a marker for the built-in catalog.
func catalogName(dir string) string {
	if dir == "" {
		return builtinCatalog
	}
	return dir
}

// lookupLesson loads the catalog and returns lesson id. Failures are
// ExitErrors with ExitCommandError.
func lookupLesson(dir, id string) (lesson.Lesson, error) {
	cat, errs := loadCatalog(dir, catalog.LoadModeFailFast)
	if cat == nil || len(errs) > 0 {
		return lesson.Lesson{}, WrapExitError(ExitCommandError,
			fmt.Sprintf("failed to load catalog %s", catalogName(dir)), errors.Join(errs...))
	}

	l, ok := cat.Lookup(id)
	if !ok {
		return lesson.Lesson{}, NewExitError(ExitCommandError,
			fmt.Sprintf("%s: lesson %q not found in catalog %s", ErrCodeUnknownLesson, id, catalogName(dir)))
	}
	return l, nil
}

// loadErrorCode returns the catalog error code carried by err.
func loadErrorCode(err error) string {
	var le *catalog.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	var ce *catalog.CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return catalog.ErrCodeGeneric
}
