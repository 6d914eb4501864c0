package credential

// VerifyLegacy compares a pre-migration credential with the provided
// password. A length mismatch returns early and so leaks the stored length;
// equal lengths are compared in constant time. Any acceptance here means the
// credential must be rehashed.
func VerifyLegacy(stored string, provided string) bool {
	if len(stored) != len(provided) {
		return false
	}

	var diff byte
	for i := 0; i < len(stored); i++ {
		diff |= stored[i] ^ provided[i]
	}

	return diff == 0
}
