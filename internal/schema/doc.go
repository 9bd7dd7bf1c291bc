// Package schema provides the versioned value model used to persist
// calibration data.
//
// Every persisted entity encodes itself into a typed value tree (String,
// Int, Float, Bool, List, Object) and declares a schema version. Backends
// serialize the tree; they never see calibration types. schema imports
// nothing internal except calerr.
//
// Key design constraints:
//   - Floats round-trip bit-for-bit (shortest 'g' formatting, always marked
//     as float so 1.0 never decodes as an integer)
//   - NaN and infinities are rejected at the serialization boundary
//   - Strings are NFC normalized in canonical JSON
//   - All object keys use snake_case
package schema
