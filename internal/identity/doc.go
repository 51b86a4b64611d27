// Package identity is the credential store for Askfm users.
//
// It owns the users table: lookup by normalized email or id, and creation with
// a salted password hash. Password verification itself lives in security/password.
package identity
