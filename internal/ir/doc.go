// Package ir provides the compiled intermediate representation for
// manifest sources.
//
// This package contains the IR type definitions, the deterministic JSON
// encoding used for committed artifacts, content hashing for provenance,
// and the derived commands.json projection. All other internal packages
// import ir; ir imports nothing internal. This keeps the IR the
// foundational layer with no circular dependencies.
//
// Key constraints:
//   - Compiling the same source twice must yield byte-identical IR.
//     Slices preserve declaration order; map-shaped data is sorted at
//     encode time; no wall-clock values appear inside the hashed region.
//   - JSON field names are a wire contract shared with the route
//     generator and the drift checker. Do not rename without a
//     compatibility plan.
package ir
