package sources

// Selection picks between a language's primary and fallback backend.
type Selection uint8

const (
	Primary Selection = iota
	Fallback
)

// Flip returns the other backend.
func (s Selection) Flip() Selection {
	if s == Primary {
		return Fallback
	}
	return Primary
}

func (s Selection) String() string {
	if s == Fallback {
		return "fallback"
	}
	return "primary"
}
