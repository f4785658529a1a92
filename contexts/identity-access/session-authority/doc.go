// Package sessionauthority implements voter and administrator sessions inside
// the identity-access context.
//
// Layering:
// - domain: the Session variant, voter snapshots, sentinel errors
// - application: session commands (phone verification, admin login,
//   district selection, logout) and session queries
// - ports: directory, registry, session store, code delivery boundaries
// - adapters: static directory, kv-backed session store, log code sender, HTTP handler
// - transport: module-private DTOs for HTTP contracts
//
// Boundary notes:
// - Voter ballot status lives in the election context and is reached only
//   through the VoterRegistry port.
// - Do not import other context packages into domain/application.
package sessionauthority
