package fingerprint

import (
	"image"
)

// Verifier scores the visual similarity of a candidate against the reference
// identified by referenceID. Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(referenceID string, candidate image.Image) (float64, error)
}

// SSIMVerifier verifies candidates with the structural similarity metric,
// loading reference images on demand.
type SSIMVerifier struct {
	// LoadReference resolves a reference id to its image. Defaults to
	// decoding the id as a file path.
	LoadReference func(referenceID string) (image.Image, error)
}

// Verify implements Verifier.
func (v *SSIMVerifier) Verify(referenceID string, candidate image.Image) (float64, error) {
	load := v.LoadReference
	if load == nil {
		load = DecodeFile
	}
	reference, err := load(referenceID)
	if err != nil {
		return 0, err
	}
	return SSIM(reference, candidate), nil
}

// Matcher decides whether a candidate image matches any reference entry.
// Stateless between calls; safe to share across workers once constructed.
type Matcher struct {
	db        DB
	order     []string
	threshold int

	useSecondary bool
	minScore     float64
	verifier     Verifier
}

// NewMatcher builds a matcher over the given reference database.
// When useSecondary is true, hash-level candidates are confirmed with the
// verifier; a nil verifier, a reference that cannot be loaded, or a scoring
// failure all reject the candidate. Verification being unavailable never
// weakens match strictness.
func NewMatcher(db DB, threshold int, useSecondary bool, minScore float64, verifier Verifier) *Matcher {
	return &Matcher{
		db:           db,
		order:        db.ReferenceIDs(),
		threshold:    threshold,
		useSecondary: useSecondary,
		minScore:     minScore,
		verifier:     verifier,
	}
}

// Match returns the first confirmed reference id for the candidate, or false
// when nothing matches. Iteration over the reference database follows the
// sorted reference id order, so the reported reference is deterministic.
func (m *Matcher) Match(candidate image.Image, hashes Hashes) (string, bool) {
	for _, referenceID := range m.order {
		if !AnyDistanceWithin(hashes, m.db[referenceID], m.threshold) {
			continue
		}
		if m.useSecondary && !m.confirm(referenceID, candidate) {
			continue
		}
		return referenceID, true
	}
	return "", false
}

func (m *Matcher) confirm(referenceID string, candidate image.Image) bool {
	if m.verifier == nil || candidate == nil {
		return false
	}
	score, err := m.verifier.Verify(referenceID, candidate)
	if err != nil {
		return false
	}
	return score >= m.minScore
}
