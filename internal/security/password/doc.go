// Package password hashes and verifies user passwords.
//
// bcrypt is the default algorithm; Argon2id is available for deployments that
// prefer a memory-hard hash. Verify detects the algorithm from the encoded hash,
// so switching algorithms keeps existing users able to log in.
//
// Hash strings are treated as untrusted input during Verify.
package password
