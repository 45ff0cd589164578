// Package compositor derives a RenderRecipe from a SelectorTuple.
//
// Compose is a pure function: no ambient state, no I/O, no wall-clock
// reads. The curated lookup tables are passed in explicitly, so the same
// tables and tuple reproduce a byte-identical recipe forever.
//
// DRAW ORDER:
//
// The tuple digest seeds a splitmix64 stream. Draws are taken in this fixed
// order and index into the curated tables rather than sampling an unbounded
// space:
//  1. base hue (signature ramp)
//  2. hue jitter (+-12 degrees)
//  3. saturation step
//  4. lightness step
//  5. accent harmony offset
//  6. glow lightness
//  7. motif family (form)
//  8. duration set (chrono)
//  9. per-role duration jitter, arrival..afterglow (+-5 percent)
//  10. outcome seed
//
// Changing this order changes every recipe; bump ir.RecipeVersion if you do.
package compositor
