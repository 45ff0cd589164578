package compositor

import (
	"slices"
	"strconv"

	"github.com/roach88/navicue/internal/ir"
)

// Dimension names one selector field.
type Dimension string

const (
	DimSignature     Dimension = "signature"
	DimForm          Dimension = "form"
	DimChrono        Dimension = "chrono"
	DimKnowledgeMode Dimension = "knowledge_mode"
	DimHook          Dimension = "hook"
	DimSeed          Dimension = "specimen_seed"
	DimSeal          Dimension = "is_seal"
)

// Dimensions lists every selector field in tuple order.
func Dimensions() []Dimension {
	return []Dimension{DimSignature, DimForm, DimChrono, DimKnowledgeMode, DimHook, DimSeed, DimSeal}
}

// EnumerateTuples returns the full tuple space for the given seeds, in
// enumeration order.
func EnumerateTuples(seeds []int64) []ir.SelectorTuple {
	var out []ir.SelectorTuple
	for _, sig := range ir.Signatures() {
		for _, form := range ir.Forms() {
			for _, chrono := range ir.Chronos() {
				for _, mode := range ir.KnowledgeModes() {
					for _, hook := range ir.Hooks() {
						for _, seed := range seeds {
							for _, seal := range []bool{false, true} {
								out = append(out, ir.SelectorTuple{
									Signature:     sig,
									Form:          form,
									Chrono:        chrono,
									KnowledgeMode: mode,
									Hook:          hook,
									SpecimenSeed:  seed,
									IsSeal:        seal,
								})
							}
						}
					}
				}
			}
		}
	}
	return out
}

// DiversityReport summarizes how well recipes spread over a tuple set.
// A "look" is the (palette, motif family) pair a learner actually sees.
type DiversityReport struct {
	Tuples        int     `json:"tuples"`
	DistinctLooks int     `json:"distinct_looks"`
	Colliding     int     `json:"colliding"`
	CollisionRate float64 `json:"collision_rate"`

	// Sensitivity is, per dimension, the fraction of tuples whose look
	// changes when only that field is moved to a neighbouring value.
	Sensitivity map[Dimension]float64 `json:"sensitivity"`

	// MaxSliceRate is, per dimension, the worst collision rate among the
	// tuples sharing one value of that field. A high value means collisions
	// cluster around that dimension.
	MaxSliceRate map[Dimension]float64 `json:"max_slice_rate"`
}

type look struct {
	palette ir.Palette
	motif   string
}

// Diversity composes every tuple and reports collision statistics.
func Diversity(tables Tables, tuples []ir.SelectorTuple) (DiversityReport, error) {
	report := DiversityReport{
		Tuples:       len(tuples),
		Sensitivity:  make(map[Dimension]float64),
		MaxSliceRate: make(map[Dimension]float64),
	}
	if len(tuples) == 0 {
		return report, nil
	}

	looks := make([]look, len(tuples))
	counts := make(map[look]int)
	for i, t := range tuples {
		r, err := Compose(tables, t)
		if err != nil {
			return DiversityReport{}, err
		}
		looks[i] = look{palette: r.Palette, motif: r.MotifFamily}
		counts[looks[i]]++
	}

	colliding := make([]bool, len(tuples))
	for i, l := range looks {
		if counts[l] > 1 {
			colliding[i] = true
			report.Colliding++
		}
	}
	report.DistinctLooks = len(counts)
	report.CollisionRate = float64(report.Colliding) / float64(len(tuples))

	for _, dim := range Dimensions() {
		changed := 0
		sliceTotal := make(map[string]int)
		sliceColliding := make(map[string]int)
		for i, t := range tuples {
			n, err := Compose(tables, neighbour(t, dim))
			if err != nil {
				return DiversityReport{}, err
			}
			if (look{palette: n.Palette, motif: n.MotifFamily}) != looks[i] {
				changed++
			}
			v := sliceValue(t, dim)
			sliceTotal[v]++
			if colliding[i] {
				sliceColliding[v]++
			}
		}
		report.Sensitivity[dim] = float64(changed) / float64(len(tuples))

		worst := 0.0
		for v, total := range sliceTotal {
			worst = max(worst, float64(sliceColliding[v])/float64(total))
		}
		report.MaxSliceRate[dim] = worst
	}

	return report, nil
}

// neighbour moves one field of t to the next value in its domain.
func neighbour(t ir.SelectorTuple, dim Dimension) ir.SelectorTuple {
	switch dim {
	case DimSignature:
		t.Signature = nextOf(ir.Signatures(), t.Signature)
	case DimForm:
		t.Form = nextOf(ir.Forms(), t.Form)
	case DimChrono:
		t.Chrono = nextOf(ir.Chronos(), t.Chrono)
	case DimKnowledgeMode:
		t.KnowledgeMode = nextOf(ir.KnowledgeModes(), t.KnowledgeMode)
	case DimHook:
		t.Hook = nextOf(ir.Hooks(), t.Hook)
	case DimSeed:
		t.SpecimenSeed++
	case DimSeal:
		t.IsSeal = !t.IsSeal
	}
	return t
}

func nextOf[T comparable](domain []T, v T) T {
	i := slices.Index(domain, v)
	return domain[(i+1)%len(domain)]
}

func sliceValue(t ir.SelectorTuple, dim Dimension) string {
	switch dim {
	case DimSignature:
		return string(t.Signature)
	case DimForm:
		return string(t.Form)
	case DimChrono:
		return string(t.Chrono)
	case DimKnowledgeMode:
		return string(t.KnowledgeMode)
	case DimHook:
		return string(t.Hook)
	case DimSeed:
		return strconv.FormatInt(t.SpecimenSeed, 10)
	default:
		return strconv.FormatBool(t.IsSeal)
	}
}
