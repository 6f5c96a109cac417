// Package client talks to the Matrix homeserver over the client-server
// API.
//
// Contents:
//   - Client: minimal authenticated HTTP client covering the key
//     endpoints the bridge needs (claim, query, upload, send-to-device,
//     whoami).
//   - MatrixError: decoded standard error envelope (errcode + error).
//
// Notes:
//   - Every request carries the configured access token as a Bearer
//     header. When acting as an appservice this is the as_token.
//   - Callers own retry policy; the client reports errors and does not
//     retry on its own.
package client
