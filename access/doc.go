// Package access provides the five access-control evaluators used to gate
// academic records: MAC (clearance lattice), DAC (owner-granted shares), RBAC
// (role hierarchy and exact role match), RuBAC (time windows) and ABAC
// (attribute equality), plus the composition helpers handlers use to chain
// them.
//
// # Failure semantics
//
// Every evaluator is total. Unknown levels, roles, rules or policies resolve
// to a deny, never to an allow and never to a panic. Only the DAC evaluator
// performs I/O; its store errors are returned alongside a false decision.
//
// # Composition
//
// There is no policy language. Callers pick the checks relevant to a
// resource and combine them with [All]. The DAC alternative to ownership is
// [OwnerOrShared], which only honours grants made by the resource owner. MAC
// is expected to sit in the same [All] so that a share can widen the
// ownership check but never lower the clearance floor.
//
// # What this package must NOT do
//
//   - Read the wall clock. Time-window rules receive the instant to evaluate.
//   - Treat ownership as an implicit DAC grant. Use [OwnerOrShared].
//   - Import sias, session, or any store implementation.
package access
