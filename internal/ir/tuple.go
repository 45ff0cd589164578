package ir

import (
	"fmt"
	"slices"
)

// Signature is the thematic voice of a lesson.
type Signature string

const (
	SignatureSensoryCinema   Signature = "sensory_cinema"
	SignatureScienceXSoul    Signature = "science_x_soul"
	SignatureKoanParadox     Signature = "koan_paradox"
	SignaturePatternGlitch   Signature = "pattern_glitch"
	SignatureSacredOrdinary  Signature = "sacred_ordinary"
	SignatureWitnessRitual   Signature = "witness_ritual"
	SignaturePoeticPrecision Signature = "poetic_precision"
	SignatureRelationalGhost Signature = "relational_ghost"
	SignatureSomaticAnchor   Signature = "somatic_anchor"
	SignatureMirrorLattice   Signature = "mirror_lattice"
	SignatureThresholdBell   Signature = "threshold_bell"
	SignatureQuietArchitect  Signature = "quiet_architect"
)

// Form is the visual material a lesson is built from.
type Form string

const (
	FormEmber   Form = "ember"
	FormRiver   Form = "river"
	FormLattice Form = "lattice"
	FormMirror  Form = "mirror"
	FormStone   Form = "stone"
	FormThread  Form = "thread"
	FormBloom   Form = "bloom"
	FormTide    Form = "tide"
	FormEcho    Form = "echo"
	FormPrism   Form = "prism"
)

// Chrono is the pacing register of a lesson.
type Chrono string

const (
	ChronoDawn    Chrono = "dawn"
	ChronoMorning Chrono = "morning"
	ChronoNoon    Chrono = "noon"
	ChronoDusk    Chrono = "dusk"
	ChronoNight   Chrono = "night"
	ChronoLiminal Chrono = "liminal"
)

// KnowledgeMode is the depth at which a lesson addresses its concept.
type KnowledgeMode string

const (
	KnowledgeBelieving KnowledgeMode = "believing"
	KnowledgeKnowing   KnowledgeMode = "knowing"
	KnowledgeEmbodying KnowledgeMode = "embodying"
)

// Hook is the interaction the learner performs.
type Hook string

const (
	HookTap     Hook = "tap"
	HookDrag    Hook = "drag"
	HookHold    Hook = "hold"
	HookType    Hook = "type"
	HookObserve Hook = "observe"
)

// Enumerations in declaration order. Accessors return copies so callers
// cannot reorder the domain.
var (
	signatures = []Signature{
		SignatureSensoryCinema, SignatureScienceXSoul, SignatureKoanParadox,
		SignaturePatternGlitch, SignatureSacredOrdinary, SignatureWitnessRitual,
		SignaturePoeticPrecision, SignatureRelationalGhost, SignatureSomaticAnchor,
		SignatureMirrorLattice, SignatureThresholdBell, SignatureQuietArchitect,
	}
	forms = []Form{
		FormEmber, FormRiver, FormLattice, FormMirror, FormStone,
		FormThread, FormBloom, FormTide, FormEcho, FormPrism,
	}
	chronos = []Chrono{
		ChronoDawn, ChronoMorning, ChronoNoon, ChronoDusk, ChronoNight, ChronoLiminal,
	}
	knowledgeModes = []KnowledgeMode{KnowledgeBelieving, KnowledgeKnowing, KnowledgeEmbodying}
	hooks          = []Hook{HookTap, HookDrag, HookHold, HookType, HookObserve}
)

// Signatures returns every recognized signature in declaration order.
// The slice is a copy; callers may modify it.
func Signatures() []Signature { return slices.Clone(signatures) }

// Forms returns every recognized form in declaration order.
func Forms() []Form { return slices.Clone(forms) }

// Chronos returns every recognized chrono in declaration order.
func Chronos() []Chrono { return slices.Clone(chronos) }

// KnowledgeModes returns every recognized knowledge mode in declaration order.
func KnowledgeModes() []KnowledgeMode { return slices.Clone(knowledgeModes) }

// Hooks returns every recognized hook in declaration order.
func Hooks() []Hook { return slices.Clone(hooks) }

// Valid reports whether s is a recognized signature.
func (s Signature) Valid() bool { return slices.Contains(signatures, s) }

// Valid reports whether f is a recognized form.
func (f Form) Valid() bool { return slices.Contains(forms, f) }

// Valid reports whether c is a recognized chrono.
func (c Chrono) Valid() bool { return slices.Contains(chronos, c) }

// Valid reports whether k is a recognized knowledge mode.
func (k KnowledgeMode) Valid() bool { return slices.Contains(knowledgeModes, k) }

// Valid reports whether h is a recognized hook.
func (h Hook) Valid() bool { return slices.Contains(hooks, h) }

// SelectorTuple is the immutable configuration key identifying one lesson
// variant. It is a comparable value; copies are independent.
type SelectorTuple struct {
	Signature     Signature     `json:"signature" yaml:"signature"`
	Form          Form          `json:"form" yaml:"form"`
	Chrono        Chrono        `json:"chrono" yaml:"chrono"`
	KnowledgeMode KnowledgeMode `json:"knowledge_mode" yaml:"knowledge_mode"`
	Hook          Hook          `json:"hook" yaml:"hook"`
	SpecimenSeed  int64         `json:"specimen_seed" yaml:"specimen_seed"`
	IsSeal        bool          `json:"is_seal" yaml:"is_seal"`
}

// Validate rejects tuples with empty or unrecognized enum fields.
// Returns the first problem found as a *ConfigurationError.
func (t SelectorTuple) Validate() error {
	checks := []struct {
		field string
		value string
		valid bool
	}{
		{"signature", string(t.Signature), t.Signature.Valid()},
		{"form", string(t.Form), t.Form.Valid()},
		{"chrono", string(t.Chrono), t.Chrono.Valid()},
		{"knowledge_mode", string(t.KnowledgeMode), t.KnowledgeMode.Valid()},
		{"hook", string(t.Hook), t.Hook.Valid()},
	}
	for _, c := range checks {
		if c.value == "" {
			return NewIncompleteTupleError(c.field)
		}
		if !c.valid {
			return NewUnknownEnumError(c.field, c.value)
		}
	}
	return nil
}

// Fields returns the tuple as a plain map for canonical serialization.
func (t SelectorTuple) Fields() map[string]any {
	return map[string]any{
		"signature":      string(t.Signature),
		"form":           string(t.Form),
		"chrono":         string(t.Chrono),
		"knowledge_mode": string(t.KnowledgeMode),
		"hook":           string(t.Hook),
		"specimen_seed":  t.SpecimenSeed,
		"is_seal":        t.IsSeal,
	}
}

// Key returns the canonical JSON form of the tuple. It is the cache key
// for recipes and the input to TupleDigest.
func (t SelectorTuple) Key() string {
	return string(MustMarshalCanonical(t.Fields()))
}

// String implements fmt.Stringer with a compact slash-separated form.
func (t SelectorTuple) String() string {
	seal := ""
	if t.IsSeal {
		seal = "/seal"
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s#%d%s",
		t.Signature, t.Form, t.Chrono, t.KnowledgeMode, t.Hook, t.SpecimenSeed, seal)
}
