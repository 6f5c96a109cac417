// Package domain defines the data model and contracts shared across the
// bridge: Matrix identifier and key types, wire/state structs, and the
// interfaces the stores, homeserver client, and encryption machine satisfy.
package domain
