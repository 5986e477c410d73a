// Package otp generates short numeric one-time codes.
//
// Codes are drawn uniformly from crypto/rand and carry no state between calls,
// so the same generator serves link codes and login OTPs.
package otp
