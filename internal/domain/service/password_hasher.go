// Package service declares the ports the use cases depend on: token signing,
// password hashing, OAuth providers, mail and the token stores.
package service

// PasswordHasher hashes and checks local account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)

	// Check reports whether password matches hash. A malformed hash never matches.
	Check(password, hash string) bool

	// Equalize spends the same work as a failed Check. Login calls it for
	// unknown emails so response time does not reveal which accounts exist.
	Equalize(password string)
}
