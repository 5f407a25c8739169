// Package textutil provides text helpers for transcripts: token fingerprints,
// TF-IDF ranking for free-text search, word counts, and filename sanitizing.
//
// Tokenization lowercases text, splits on anything that is not a letter or
// digit in any script, and drops tokens shorter than two runes. Fingerprints
// are term-frequency vectors; an Index weights them with smoothed inverse
// document frequency and ranks documents by cosine similarity to a query.
package textutil
