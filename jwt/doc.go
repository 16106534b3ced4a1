// Package jwt wraps token minting and parsing for authcore sessions.
//
// Two token kinds exist, distinguished by the "typ" claim: short-lived
// access tokens and longer-lived refresh tokens. Both are HS256-signed with
// the deployment signing secret. Parsing enforces the signing algorithm,
// expiry, issuer when configured, and the expected token type — a refresh
// token never passes access validation and vice versa.
package jwt
