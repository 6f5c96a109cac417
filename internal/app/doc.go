// Package app wires the bridge's dependencies for the CLI.
//
// It builds the store, homeserver client, encryption machine, device
// directory and appservice server from the loaded configuration,
// exposing them via the Wire struct for commands to use.
package app
