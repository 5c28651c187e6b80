// Package report builds the payloads sent when a user flags a transcript
// segment whose scripture reference was missed, and the transcript export
// that shares their shape.
package report

import (
	"time"

	"github.com/FocuswithJustin/versewatch/core/errors"
	"github.com/FocuswithJustin/versewatch/core/scripture"
)

// contextSegments is the number of segments before the reported one that
// are included for context.
const contextSegments = 2

// KeyPoint is a highlighted statement attached to a segment by a
// downstream extractor.
type KeyPoint struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// Segment is one transcript segment with the references found in it.
type Segment struct {
	ID         string                `json:"id"`
	Text       string                `json:"text"`
	Timestamp  int64                 `json:"timestamp"` // Unix milliseconds
	IsFinal    bool                  `json:"isFinal"`
	References []scripture.Reference `json:"references,omitempty"`
	KeyPoints  []KeyPoint            `json:"keyPoints,omitempty"`
}

// References splits references by source.
type References struct {
	Direct     []scripture.Reference `json:"direct"`
	Paraphrase []scripture.Reference `json:"paraphrase"`
}

// Payload is the missed-reference report.
type Payload struct {
	GeneratedAt       string     `json:"generatedAt"`
	ReportedSegmentID string     `json:"reportedSegmentId"`
	Segments          []Segment  `json:"segments"`
	Interim           *string    `json:"interim"`
	References        References `json:"references"`
}

// Transcript is the full-session export.
type Transcript struct {
	ExportedAt string     `json:"exportedAt"`
	Segments   []Segment  `json:"segments"`
	References References `json:"references"`
}

// Build returns the report for reportedID: that segment and up to two
// before it. References are correlated to segments by transcript text, so
// a reference attached to any segment of history lands in every included
// segment with the same text.
func Build(history []Segment, reportedID, interim string, now time.Time) (*Payload, error) {
	index := -1
	for i, s := range history {
		if s.ID == reportedID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, errors.NewNotFound("segment", reportedID)
	}

	slice := history[max(0, index-contextSegments) : index+1]
	segments, refs := correlate(slice, allReferences(history))

	p := &Payload{
		GeneratedAt:       now.UTC().Format(time.RFC3339Nano),
		ReportedSegmentID: reportedID,
		Segments:          segments,
		References:        refs,
	}
	if interim != "" {
		p.Interim = &interim
	}
	return p, nil
}

// Export returns the whole history in the report's segment shape.
func Export(history []Segment, now time.Time) *Transcript {
	segments, refs := correlate(history, allReferences(history))
	return &Transcript{
		ExportedAt: now.UTC().Format(time.RFC3339Nano),
		Segments:   segments,
		References: refs,
	}
}

func allReferences(history []Segment) []scripture.Reference {
	var refs []scripture.Reference
	for _, s := range history {
		refs = append(refs, s.References...)
	}
	return refs
}

func correlate(slice []Segment, detected []scripture.Reference) ([]Segment, References) {
	texts := make(map[string]bool, len(slice))
	segments := make([]Segment, len(slice))
	for i, s := range slice {
		texts[s.Text] = true
		out := s
		out.References = nil
		for _, r := range detected {
			if r.TranscriptText == s.Text {
				out.References = append(out.References, r)
			}
		}
		if len(out.KeyPoints) == 0 {
			out.KeyPoints = nil
		}
		segments[i] = out
	}

	refs := References{
		Direct:     []scripture.Reference{},
		Paraphrase: []scripture.Reference{},
	}
	for _, r := range detected {
		if r.TranscriptText == "" || !texts[r.TranscriptText] {
			continue
		}
		switch r.Source {
		case scripture.SourceDirect:
			refs.Direct = append(refs.Direct, r)
		case scripture.SourceParaphrase:
			refs.Paraphrase = append(refs.Paraphrase, r)
		}
	}
	return segments, refs
}
