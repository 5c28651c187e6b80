// Package scripture defines the closed data model shared by the detector,
// the verse resolver and the paraphrase classifier.
//
// # Core Types
//
//   - Candidate: a citation-like span recognised in a transcript fragment
//   - Reference: a Candidate resolved against a translation, carrying text
//   - Verse: one verse of a resolved Reference
//
// Candidates carry a Kind that records which grammar rule produced them.
// References carry a Source that separates explicit citations (direct)
// from quoted-but-uncited passages (paraphrase).
//
// # Display Strings
//
// References render as "Book Chapter:Verse" or "Book Chapter:Start-End".
// ParseDisplay accepts the same form, plus a bare "Book Chapter", and is
// used for lookups typed by people rather than detected in speech.
package scripture
