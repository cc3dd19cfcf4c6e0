package common

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used for derived password material once it is no longer needed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
