package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/ctorder/internal/compiler"
	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/model"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the classes loaded from a specs directory.
type LoadResult struct {
	Classes   []ir.ClassSpec
	CUEValue  cue.Value
	FileCount int
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants shared by all commands. Validation codes
// (E100-E199) come from the compiler package.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeCompileFailed = "E008" // class declaration has the wrong shape
	ErrCodeModel         = "E009" // classes do not form a valid hierarchy
)

// LoadSpecs loads every CUE file of dir as one instance and compiles the
// entries of its top-level "class" struct.
//
// A nil result means the directory could not be loaded at all. Otherwise
// the result holds the classes that compiled and errs those that did not;
// with LoadModeFailFast errs has at most one entry.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
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

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		Classes:   []ir.ClassSpec{},
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	var errs []error
	classes := value.LookupPath(cue.ParsePath("class"))
	if classes.Exists() {
		iter, iterErr := classes.Fields()
		if iterErr != nil {
			return result, []error{&LoadError{Code: ErrCodeCompileFailed, Message: fmt.Sprintf("class must be a struct keyed by class name: %v", iterErr)}}
		}
		for iter.Next() {
			spec, compileErr := compiler.CompileClass(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "class."+iter.Label()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			result.Classes = append(result.Classes, *spec)
		}
	}

	if len(result.Classes) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no classes found in specs"})
	}
	return result, errs
}

// LoadRegistry loads dir, validates the class set and declares it.
// Any error is returned as a *LoadError or a compiler.ValidationError.
func LoadRegistry(dir string) (*model.Registry, []ir.ClassSpec, error) {
	loaded, errs := LoadSpecs(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, nil, errs[0]
	}
	if verrs := compiler.Validate(loaded.Classes); len(verrs) > 0 {
		return nil, nil, verrs[0]
	}
	registry := model.NewRegistry()
	if err := registry.DeclareAll(model.FromSpecs(loaded.Classes)); err != nil {
		return nil, nil, &LoadError{Code: ErrCodeModel, Message: err.Error()}
	}
	return registry, loaded.Classes, nil
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

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeCompileFailed,
			Message: fmt.Sprintf("%s.%s: %s", compileErr.Class, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// errorCode returns the code of a load, validation or compile error.
func errorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return ErrCodeCompileFailed
	}
	return ErrCodeGeneric
}
