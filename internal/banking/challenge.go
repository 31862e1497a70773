package banking

// ChallengeKind classifies how a challenge must be shown to the user.
type ChallengeKind int

const (
	// ChallengeText is a plain instruction, e.g. "enter the TAN from
	// your app".
	ChallengeText ChallengeKind = iota
	// ChallengeFlicker is an optical code for a TAN generator, encoded
	// as an HHD 1.3 payload.
	ChallengeFlicker
	// ChallengeMatrix is an image (photoTAN / QR) to scan with a
	// banking app.
	ChallengeMatrix
)

func (k ChallengeKind) String() string {
	switch k {
	case ChallengeFlicker:
		return "flicker"
	case ChallengeMatrix:
		return "matrix"
	default:
		return "text"
	}
}

// Challenge is a multi-factor challenge raised by the endpoint. Ref is
// an opaque token tying the answer back to the operation that raised it.
type Challenge struct {
	Ref        string
	Text       string
	HHDUC      string // flicker payload, empty otherwise
	Matrix     []byte // image bytes, empty otherwise
	MatrixMIME string
}

// Kind classifies the challenge; flicker wins over matrix when both
// payloads are present, matching how endpoints downgrade.
func (c *Challenge) Kind() ChallengeKind {
	switch {
	case c.HHDUC != "":
		return ChallengeFlicker
	case len(c.Matrix) > 0:
		return ChallengeMatrix
	default:
		return ChallengeText
	}
}
