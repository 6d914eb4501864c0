package credential

type Format int

const (
	FormatLegacy Format = iota
	FormatModern
)

func (f Format) String() string {
	switch f {
	case FormatModern:
		return "modern"
	default:
		return "legacy"
	}
}

// DetectFormat is the only place that decides which verification path a
// stored credential takes.
func DetectFormat(stored string) Format {
	if _, ok := decodeDigest(stored); ok {
		return FormatModern
	}

	return FormatLegacy
}

// Result is the outcome of a single credential check.
type Result struct {
	OK          bool
	NeedsRehash bool
	Format      Format
}

// Verifier hides the modern/legacy split from callers.
type Verifier struct {
	hasher *Hasher
}

func NewVerifier(hasher *Hasher) *Verifier {
	if hasher == nil {
		hasher = NewHasher(DefaultIterations)
	}

	return &Verifier{hasher: hasher}
}

func (v *Verifier) Verify(stored string, provided string) bool {
	return v.Check(stored, provided).OK
}

// Check resolves the format once and reports the verdict together with the
// migration signal. NeedsRehash is only meaningful when OK is true.
func (v *Verifier) Check(stored string, provided string) Result {
	format := DetectFormat(stored)
	result := Result{Format: format, NeedsRehash: format == FormatLegacy}

	if stored == "" || provided == "" {
		return result
	}

	switch format {
	case FormatModern:
		result.OK = v.hasher.Verify(stored, provided)
	default:
		result.OK = VerifyLegacy(stored, provided)
	}

	return result
}

func (v *Verifier) NeedsRehash(stored string) bool {
	return v.hasher.IsLegacyFormat(stored)
}

func (v *Verifier) Hash(password string) (string, error) {
	return v.hasher.Hash(password)
}
