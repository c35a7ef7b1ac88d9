// Package authz implements the principal model and its context governance:
// a single authorization identity per unit of work, privilege checks at
// global and organization scope, staleness-aware reloading, and controlled
// system bypass for non-interactive work.
//
// Core concepts:
//
//   - Principal: A single authorization identity per request (account or
//     synthetic). Established via WithPrincipal or the synthetic context
//     constructors; replaced in place only through Store.Replace.
//
//   - Store: The current-principal accessor. Store.Current performs the
//     per-request staleness check against the authoritative source and swaps
//     in a rebuilt principal when roles changed, failing open when the source
//     is unreachable.
//
//   - Bypass: Controlled gating bypass via RunAsSystem (closure, preferred).
//     All bypass operations are audited.
//
// Usage rules:
//
//  1. Background tasks must establish their own principal via
//     NewBackgroundJobContext at unit-of-work start; principals never leak
//     across pooled workers.
//  2. Prefer RunAsSystem closures to limit bypass scope.
//  3. All bypass reasons must be stable strings for audit aggregation.
package authz
