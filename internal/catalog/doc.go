// Package catalog loads lesson records from CUE.
//
// A catalog is a CUE package (or a single source) with a top-level
// `lesson` struct keyed by lesson id:
//
//	lesson: "koan-ember-42": {
//		title: "The sound of one ember"
//		tuple: {
//			signature:      "koan_paradox"
//			form:           "ember"
//			chrono:         "dusk"
//			knowledge_mode: "knowing"
//			hook:           "tap"
//			specimen_seed:  42
//			is_seal:        true
//		}
//		branches: ["flame", "memory"]
//		plan: [
//			{stage: "dormant", auto_advance: "2s"},
//			{stage: "engaged"},
//			{stage: "afterglow", terminal: true},
//		]
//	}
//
// Every tuple field is required; a partial tuple is rejected rather than
// defaulted. Auto-advance delays are Go duration strings or integer
// milliseconds. Compiled lessons pass lesson.Lesson.Validate, and every
// error carries the CUE position it came from.
package catalog
