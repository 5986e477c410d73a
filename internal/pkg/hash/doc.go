// Package hash provides one-way hashing of secrets.
//
// Bcrypt is used for account passwords. HMACSHA256 is used for short lived
// codes (link codes, OTPs) where a deterministic digest is needed so the value
// can be looked up by an index without storing it in clear.
package hash
