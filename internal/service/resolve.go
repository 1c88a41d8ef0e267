package service

import (
	"sort"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

// Policy holds the tunables of the consensus rules.
type Policy struct {
	// Threshold is the confidence a segment needs to count as trusted.
	Threshold float64
	// MinVotes is the number of real votes a trusted segment needs.
	MinVotes int
	// Z is the normal quantile used by the Wilson bound.
	Z float64
	// PriorUpvotes seeds every new segment so a lone submission is usable.
	PriorUpvotes int
	// ProvisionalTrust lets untrusted segments stay eligible while their
	// confidence has not fallen below the submission prior.
	ProvisionalTrust bool
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		Threshold:        0.7,
		MinVotes:         3,
		Z:                DefaultZ,
		PriorUpvotes:     1,
		ProvisionalTrust: true,
	}
}

// Confidence computes the Wilson lower bound for a segment's counters.
func (p Policy) Confidence(s model.Segment) float64 {
	return Wilson(s.Upvotes, s.Downvotes, p.Z)
}

// PriorConfidence is the confidence of a fresh, unvoted submission.
func (p Policy) PriorConfidence() float64 {
	return Wilson(p.PriorUpvotes, 0, p.Z)
}

// Trusted reports whether votes alone qualify the segment.
func (p Policy) Trusted(s model.Segment) bool {
	return s.VoteCount >= p.MinVotes && s.Confidence >= p.Threshold
}

// Eligible reports whether the segment may compete for the active set.
func (p Policy) Eligible(s model.Segment) bool {
	if p.Trusted(s) {
		return true
	}
	return p.ProvisionalTrust && s.Confidence >= p.PriorConfidence()
}

// NewSegment returns an unsaved segment carrying the submission prior.
func (p Policy) NewSegment(iv model.Interval, category model.Category, submitterID string) model.Segment {
	s := model.Segment{
		Start:       iv.Start,
		End:         iv.End,
		Category:    category,
		Upvotes:     p.PriorUpvotes,
		SubmitterID: submitterID,
	}
	s.Confidence = p.Confidence(s)
	s.SetStatus(model.StatusActive)
	return s
}

// Resolve computes the status every non-retired segment of one video should
// have and returns only the segments whose status changes. Ineligible
// segments are retired; eligible ones are ranked by confidence, then by age,
// then by id, and each is accepted unless it overlaps a higher ranked
// accepted segment, in which case it is suppressed.
//
// The result depends only on the input, so applying it and resolving again
// yields no changes.
func (p Policy) Resolve(segs []model.Segment) []model.Segment {
	var changed []model.Segment
	eligible := make([]model.Segment, 0, len(segs))

	for _, s := range segs {
		if s.Status == model.StatusRetired {
			continue
		}
		if !p.Eligible(s) {
			s.SetStatus(model.StatusRetired)
			changed = append(changed, s)
			continue
		}
		eligible = append(eligible, s)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	accepted := make([]model.Interval, 0, len(eligible))
	for _, s := range eligible {
		want := model.StatusActive
		for _, iv := range accepted {
			if iv.Overlaps(s.Interval()) {
				want = model.StatusSuppressed
				break
			}
		}
		if want == model.StatusActive {
			accepted = append(accepted, s.Interval())
		}
		if s.Status != want {
			s.SetStatus(want)
			changed = append(changed, s)
		}
	}

	return changed
}

// ActiveSet filters segs down to the active ones, ordered by start time.
func ActiveSet(segs []model.Segment) []model.Segment {
	out := make([]model.Segment, 0, len(segs))
	for _, s := range segs {
		if s.Status == model.StatusActive {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
