// Package ir provides the value types shared by every NaviCue package.
//
// This package contains the selector tuple, the derived render recipe,
// canonical JSON serialization, domain-separated hashing and the
// configuration error taxonomy. All other internal packages import ir;
// ir imports nothing internal.
//
// Key design constraints:
//   - NO float fields on recipes - scalars are integer permille
//   - Canonical JSON is the only serialization used for identity hashing
//   - All JSON tags use snake_case
//   - Recipe identity never depends on wall-clock time
package ir
