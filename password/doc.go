// Package password hashes and verifies login passwords with bcrypt.
//
// [Hasher.NeedsRehash] reports hashes produced at a lower cost than the
// configured one so callers can upgrade on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authgate package.
//   - Log plaintext passwords.
package password
