// Package password implements the credential hashing and password policy
// layer of authcore.
//
// Hashing uses Argon2id with a configurable cost profile and produces PHC
// formatted strings ($argon2id$v=19$m=...,t=...,p=...$salt$hash). Verification
// is constant time with respect to the derived key comparison. A second,
// cheaper profile is intended for single-use high-entropy material such as
// backup codes.
//
// The policy validator is deliberately non-short-circuiting: every violated
// rule is reported so callers can surface complete feedback in one round trip.
package password
