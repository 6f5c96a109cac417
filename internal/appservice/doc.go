// Package appservice implements the homeserver-facing half of the
// application service API: the transaction push endpoint plus the user
// and room alias existence queries.
//
// Contents:
//   - Server: HTTP handler speaking both the modern /_matrix/app/v1
//     prefix and the legacy unprefixed paths.
//
// Notes:
//   - Every request must authenticate with the hs_token, either as an
//     access_token query parameter or as a Bearer header. A missing
//     token yields 401, a wrong one 403.
//   - Transactions are idempotent: a replayed transaction ID is
//     acknowledged without re-delivering its events.
//   - Relevant state events (membership, encryption, power levels) are
//     folded into the state store before the event handler runs.
package appservice
