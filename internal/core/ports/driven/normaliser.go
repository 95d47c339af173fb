package driven

// Normaliser converts the raw bytes of a manuscript file into prose.
type Normaliser interface {
	// Extensions returns the lower-case file extensions handled, with the dot.
	Extensions() []string

	// Normalise returns the prose and the title found in the file, if any.
	Normalise(content []byte) (title, text string)
}
