// Package jwt issues and verifies the session tokens handed out on signup and
// login. Tokens are HS512 signed and carry the account id and email.
package jwt
