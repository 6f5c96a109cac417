// Package commands defines the mxbridge CLI.
//
// Commands
//
//   - generate-registration  Mint tokens and write the appservice
//     registration YAML
//   - run                    Serve the bridge until interrupted
//   - fingerprint            Print the account's key fingerprints
//
// # Implementation
//
// Every subcommand loads the shared YAML configuration named by the
// --config flag; run and fingerprint additionally build the full
// dependency graph through the app package.
package commands
