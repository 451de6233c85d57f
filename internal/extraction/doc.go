// Package extraction turns call transcripts into structured appointment
// data using a language-model collaborator, then validates and scores the
// payload deterministically.
package extraction
