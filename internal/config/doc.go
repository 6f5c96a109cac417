// Package config loads the bridge's YAML configuration and generates the
// appservice registration the homeserver consumes.
//
// Contents:
//   - Config: homeserver, appservice, store and logging settings.
//   - Registration: the registration YAML, produced by
//     GenerateRegistration with freshly minted tokens.
//
// Notes:
//   - Load validates eagerly; a config still carrying placeholder values
//     is refused before anything connects.
package config
