// Package team builds the ordered roster of roles that take turns in a run.
//
// # Composition
//
// [Compose] is a pure function: it instantiates one role per requested kind in
// request order, then applies the augmentation rules driven by run flags:
//
//   - implement or code review: one extra Engineer with an elevated parallel
//     capacity (the engineer pool) and review enabled iff code review is on.
//   - run tests: one QaEngineer.
//
// Roster order is turn priority. At most one TeamLeader is expected; the
// roster reports extra leaders through [Roster.Warnings] instead of failing.
package team
