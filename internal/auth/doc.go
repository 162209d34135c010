// Package auth manages SignScribe accounts.
//
// Provider is the narrow identity-provider surface (sign in, sign up, sign
// out, password reset, profile update, token verification). LocalProvider
// implements it on the document store with bcrypt password hashes and HS256
// JWT bearer tokens. Session holds the identity of one interactive client and
// notifies listeners whenever it changes.
package auth
