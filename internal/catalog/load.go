package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/navicue/internal/lesson"
)

//go:embed builtin.cue
var builtinSource []byte

// LoadMode controls how errors are handled during catalog loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Catalog is a compiled set of lessons in declaration order.
type Catalog struct {
	Lessons   []lesson.Lesson
	FileCount int // Number of CUE files found
}

// Lookup returns the lesson with the given id.
func (c *Catalog) Lookup(id string) (lesson.Lesson, bool) {
	i := slices.IndexFunc(c.Lessons, func(l lesson.Lesson) bool { return l.ID == id })
	if i < 0 {
		return lesson.Lesson{}, false
	}
	return c.Lessons[i], true
}

// IDs returns the lesson ids in declaration order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.Lessons))
	for i, l := range c.Lessons {
		ids[i] = l.ID
	}
	return ids
}

// Load loads and compiles a CUE catalog from a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func Load(dir string, mode LoadMode) (*Catalog, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	cat, errs := compileCatalog(value, mode)
	cat.FileCount = len(cueFiles)
	return cat, errs
}

// LoadSource compiles a catalog from a single CUE source. filename is used
// in error positions.
func LoadSource(filename string, src []byte, mode LoadMode) (*Catalog, []error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	cat, errs := compileCatalog(value, mode)
	cat.FileCount = 1
	return cat, errs
}

// Builtin returns the catalog compiled into the binary.
func Builtin() (*Catalog, error) {
	cat, errs := LoadSource("builtin.cue", builtinSource, LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cat, nil
}

// compileCatalog compiles every field of the top-level lesson struct.
func compileCatalog(value cue.Value, mode LoadMode) (*Catalog, []error) {
	var errs []error
	cat := &Catalog{}

	lessonsVal := value.LookupPath(cue.ParsePath("lesson"))
	if lessonsVal.Exists() {
		iter, iterErr := lessonsVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating lessons: %v", iterErr)})
			return cat, errs
		}
		for iter.Next() {
			id := iter.Label()
			l, compileErr := CompileLesson(id, iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "lesson."+id))
				if mode == LoadModeFailFast {
					return cat, errs
				}
				continue
			}
			cat.Lessons = append(cat.Lessons, *l)
		}
	}

	if len(cat.Lessons) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoLessons, Message: "no lessons found in catalog"})
	}
	return cat, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
