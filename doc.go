// Package authcore is the local identity and session-security core of the
// portal: password authentication with account lockout, signed-session
// issuance/refresh/revocation, and TOTP two-factor authentication with
// backup codes and trusted-device bypass.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the store interfaces ([UserStore], [SessionStore], [TwoFactorStore]) and
// value types. Persistence is injected: the stores/postgres and
// stores/memory packages provide implementations, and callers may bring
// their own. Internal coordination — the seed cipher, audit dispatch —
// lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose raw tokens or plaintext secrets beyond the call that created
//     them; only digests and ciphertexts persist.
//   - Own a transport. The API surface is plain method calls; HTTP or RPC
//     adapters belong to the caller.
//   - Expand roles into permissions. Authentication ends at an identity
//     plus role; permission mapping is an external concern.
package authcore
