// Package normalisers turns raw file bytes into indexable text. Each
// sub-package handles one family of formats; Registry dispatches on MIME
// type and is what the filesystem connector uses.
package normalisers
