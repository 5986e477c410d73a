// Package clock hides the wall clock behind Clocker.
//
// Expiry checks (OTP validity, token lifetime, link code age) read time through
// a Clocker so tests can pin or advance it with Manual.
package clock
