package catalog

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"

	"github.com/roach88/navicue/internal/engine"
	"github.com/roach88/navicue/internal/ir"
	"github.com/roach88/navicue/internal/lesson"
)

// tupleStringFields are the enum fields of a selector tuple, in the order
// they are reported when missing.
var tupleStringFields = []string{"signature", "form", "chrono", "knowledge_mode", "hook"}

// Labels a lesson source may use. Anything else is a typo and is rejected
// rather than silently ignored by the open CUE struct.
var (
	lessonFields = []string{"title", "prompt", "tuple", "branches", "outcomes", "plan"}
	tupleFields  = append(slices.Clone(tupleStringFields), "specimen_seed", "is_seal")
	stepFields   = []string{"stage", "auto_advance", "terminal"}
)

// CompileLesson parses a CUE lesson struct into a Lesson and validates it.
// id is the lesson's label in the catalog.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	l, err := CompileLesson("koan-ember-42", v.LookupPath(cue.MakePath(cue.Str("lesson"), cue.Str("koan-ember-42"))))
func CompileLesson(id string, v cue.Value) (*lesson.Lesson, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if err := rejectUnknownFields(v, "", lessonFields); err != nil {
		return nil, err
	}

	l := &lesson.Lesson{ID: id}
	var err error

	if l.Title, _, err = lookupString(v, "title", "title"); err != nil {
		return nil, err
	}
	if l.Prompt, _, err = lookupString(v, "prompt", "prompt"); err != nil {
		return nil, err
	}

	l.Tuple, err = parseTuple(v)
	if err != nil {
		return nil, err
	}

	if l.Branches, err = lookupStrings(v, "branches"); err != nil {
		return nil, err
	}
	if l.Outcomes, err = lookupStrings(v, "outcomes"); err != nil {
		return nil, err
	}

	l.Plan, err = parsePlan(v)
	if err != nil {
		return nil, err
	}

	if err := l.Validate(); err != nil {
		return nil, fromConfigError(v, err)
	}
	return l, nil
}

// parseTuple requires every tuple field to be present. A partial tuple is
// never completed with defaults.
func parseTuple(v cue.Value) (ir.SelectorTuple, error) {
	var t ir.SelectorTuple

	tv := v.LookupPath(cue.ParsePath("tuple"))
	if !tv.Exists() {
		return t, &CompileError{
			Code:    ErrCodeTupleIncomplete,
			Field:   "tuple",
			Message: "tuple is required",
			Pos:     v.Pos(),
		}
	}
	if err := rejectUnknownFields(tv, "tuple.", tupleFields); err != nil {
		return t, err
	}

	values := make(map[string]string, len(tupleStringFields))
	for _, name := range tupleStringFields {
		s, ok, err := lookupString(tv, name, "tuple."+name)
		if err != nil {
			return t, err
		}
		if !ok {
			return t, missingTupleField(tv, name)
		}
		values[name] = s
	}
	t.Signature = ir.Signature(values["signature"])
	t.Form = ir.Form(values["form"])
	t.Chrono = ir.Chrono(values["chrono"])
	t.KnowledgeMode = ir.KnowledgeMode(values["knowledge_mode"])
	t.Hook = ir.Hook(values["hook"])

	seedVal := tv.LookupPath(cue.ParsePath("specimen_seed"))
	if !seedVal.Exists() {
		return t, missingTupleField(tv, "specimen_seed")
	}
	if seedVal.Kind() != cue.IntKind {
		return t, typeError(seedVal, "tuple.specimen_seed", "must be an integer")
	}
	seed, err := seedVal.Int64()
	if err != nil {
		return t, formatCUEError(err)
	}
	t.SpecimenSeed = seed

	sealVal := tv.LookupPath(cue.ParsePath("is_seal"))
	if !sealVal.Exists() {
		return t, missingTupleField(tv, "is_seal")
	}
	if sealVal.Kind() != cue.BoolKind {
		return t, typeError(sealVal, "tuple.is_seal", "must be a boolean")
	}
	seal, err := sealVal.Bool()
	if err != nil {
		return t, formatCUEError(err)
	}
	t.IsSeal = seal

	return t, nil
}

// parsePlan parses the ordered stage list. A missing plan compiles to an
// empty one and is reported by validation.
func parsePlan(v cue.Value) (engine.Plan, error) {
	pv := v.LookupPath(cue.ParsePath("plan"))
	if !pv.Exists() {
		return nil, nil
	}

	iter, err := pv.List()
	if err != nil {
		return nil, typeError(pv, "plan", "must be a list of steps")
	}

	var plan engine.Plan
	for i := 0; iter.Next(); i++ {
		sv := iter.Value()
		field := fmt.Sprintf("plan[%d]", i)
		if err := rejectUnknownFields(sv, field+".", stepFields); err != nil {
			return nil, err
		}

		stage, ok, err := lookupString(sv, "stage", field+".stage")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &CompileError{
				Code:    ErrCodePlan,
				Field:   field + ".stage",
				Message: "stage is required",
				Pos:     sv.Pos(),
			}
		}

		delay, err := parseDelay(sv.LookupPath(cue.ParsePath("auto_advance")), field+".auto_advance")
		if err != nil {
			return nil, err
		}

		terminal := false
		if tv := sv.LookupPath(cue.ParsePath("terminal")); tv.Exists() {
			if tv.Kind() != cue.BoolKind {
				return nil, typeError(tv, field+".terminal", "must be a boolean")
			}
			if terminal, err = tv.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}

		plan = append(plan, engine.Step{
			Stage:       engine.Stage(stage),
			AutoAdvance: delay,
			Terminal:    terminal,
		})
	}
	return plan, nil
}

// parseDelay accepts a Go duration string ("1500ms") or integer
// milliseconds. An absent value means no auto-advance.
func parseDelay(v cue.Value, field string) (time.Duration, error) {
	if !v.Exists() {
		return 0, nil
	}
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return 0, formatCUEError(err)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, &CompileError{
				Code:    ErrCodePlan,
				Field:   field,
				Message: fmt.Sprintf("invalid duration %q", s),
				Pos:     v.Pos(),
			}
		}
		return d, nil
	case cue.IntKind:
		ms, err := v.Int64()
		if err != nil {
			return 0, formatCUEError(err)
		}
		if ms > math.MaxInt64/int64(time.Millisecond) || ms < math.MinInt64/int64(time.Millisecond) {
			return 0, &CompileError{
				Code:    ErrCodePlan,
				Field:   field,
				Message: fmt.Sprintf("delay of %dms is out of range", ms),
				Pos:     v.Pos(),
			}
		}
		return time.Duration(ms) * time.Millisecond, nil
	default:
		return 0, typeError(v, field, "must be a duration string or integer milliseconds")
	}
}

// rejectUnknownFields reports the first regular field of v whose label is
// not in known. A value that is not a struct is a type error.
func rejectUnknownFields(v cue.Value, prefix string, known []string) error {
	iter, err := v.Fields()
	if err != nil {
		field := strings.TrimSuffix(prefix, ".")
		if field == "" {
			field = "lesson"
		}
		return typeError(v, field, "must be a struct")
	}
	for iter.Next() {
		label := iter.Label()
		if slices.Contains(known, label) {
			continue
		}
		return &CompileError{
			Code:    ErrCodeUnknownField,
			Field:   prefix + label,
			Message: fmt.Sprintf("unknown field %q", label),
			Pos:     iter.Value().Pos(),
		}
	}
	return nil
}

// lookupString returns the string at name, whether it was present, and a
// type error if it is present but not a string.
func lookupString(v cue.Value, name, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", false, nil
	}
	if fv.Kind() != cue.StringKind {
		return "", false, typeError(fv, field, "must be a string")
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

// lookupStrings returns the optional string list at name.
func lookupStrings(v cue.Value, name string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(name))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, typeError(lv, name, "must be a list of strings")
	}

	var out []string
	for i := 0; iter.Next(); i++ {
		ev := iter.Value()
		if ev.Kind() != cue.StringKind {
			return nil, typeError(ev, fmt.Sprintf("%s[%d]", name, i), "must be a string")
		}
		s, err := ev.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func missingTupleField(tv cue.Value, name string) *CompileError {
	return &CompileError{
		Code:    ErrCodeTupleIncomplete,
		Field:   "tuple." + name,
		Message: "selector tuple field is required",
		Pos:     tv.Pos(),
	}
}

func typeError(v cue.Value, field, message string) *CompileError {
	return &CompileError{
		Code:    ErrCodeInvalidType,
		Field:   field,
		Message: message,
		Pos:     v.Pos(),
	}
}

// fromConfigError positions a lesson validation error at the CUE value it
// refers to, falling back to the lesson itself.
func fromConfigError(v cue.Value, err error) error {
	var ce *ir.ConfigurationError
	if !errors.As(err, &ce) {
		return err
	}

	pos := v.Pos()
	if target := v.LookupPath(fieldPath(ce.Field)); target.Exists() {
		pos = target.Pos()
	}
	return &CompileError{
		Code:    MapConfigCode(ce.Code),
		Field:   ce.Field,
		Message: ce.Message,
		Pos:     pos,
	}
}

// fieldPath maps a validation field ("hook", "plan[2]", "branches[0]") to
// its CUE path inside a lesson.
func fieldPath(field string) cue.Path {
	name, rest, indexed := strings.Cut(field, "[")
	if !indexed {
		for _, tf := range tupleStringFields {
			if tf == name {
				return cue.MakePath(cue.Str("tuple"), cue.Str(name))
			}
		}
		return cue.MakePath(cue.Str(name))
	}
	i, err := strconv.Atoi(strings.TrimSuffix(rest, "]"))
	if err != nil {
		return cue.MakePath(cue.Str(name))
	}
	return cue.MakePath(cue.Str(name), cue.Index(i))
}
