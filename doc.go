// Package whispers implements a small secrets-sharing web application:
// visitors register an account, authenticate with a local password or a
// federated identity provider (Google, Facebook), and post a single
// free-text secret that is listed alongside everyone else's.
//
// # Architecture
//
// Account: the sole persistent entity - an identity (email and password
// hash, and/or per-provider subject IDs) plus the optional submitted
// secret. Stored behind the AccountStore interface with filesystem and
// GORM implementations under stores/.
//
// Sessions: an opaque scs session token maps server-side to nothing but
// the account ID. A signed JWT cookie is minted alongside it as a
// secondary bearer token.
//
// LocalAuth handles the login and registration forms; the oauth2
// subpackage drives the authorization-code flow for the federated
// providers. Both hand the established Account to a HandleAccountFunc
// which creates the session and redirects.
//
// The web subpackage wires the route table, and cmd/whispersd is the
// process entrypoint.
package whispers
