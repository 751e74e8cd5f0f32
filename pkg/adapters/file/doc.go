// Package file provides filesystem adapters: a directory-backed pack source with
// change notification and an atomic JSON export store.
package file
