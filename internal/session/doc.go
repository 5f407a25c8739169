// Package session owns the signed-in identity: the backend credentials, the
// avatar image and the reference to the most recently uploaded file.
//
// The credentials are persisted under the StorageKey entry of a
// localstore.Storage so a later process can Restore them. A corrupt entry is
// purged on Restore. Storage failures never leave the in-memory state
// inconsistent: LogIn keeps the session and LogOut always clears it, each
// reporting the persistence failure as ErrPersistence.
package session
