// Package html provides a Normaliser for HTML pages. It strips tags,
// scripts and styles and decodes entities so only readable text is indexed.
package html
