package gate

import (
	"bytes"
)

// missingSignatures returns the required entry-point signatures that are not
// present verbatim in the candidate. The allow-list is fixed per artifact and
// comes from configuration; a candidate that drops any of them is a
// structural regression no matter how well it parses.
func missingSignatures(candidate []byte, required []string) []string {
	var missing []string
	for _, sig := range required {
		if sig == "" {
			continue
		}
		if !bytes.Contains(candidate, []byte(sig)) {
			missing = append(missing, sig)
		}
	}
	return missing
}
