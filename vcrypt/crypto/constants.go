package crypto

const (
	// CipherV2Version is the first byte of the binary container.
	CipherV2Version = 2

	// IVSize is the AES-CBC IV size.
	IVSize = 16
	// MACSize is the HMAC-SHA256 tag size.
	MACSize = 32
	// BlockSize is the AES block size the message is padded to.
	BlockSize = 16

	// CipherV2HeaderSize is version + rounds exponent + padding + IV + MAC.
	CipherV2HeaderSize = 3 + IVSize + MACSize

	// KeyMaterialSize is the size of a KeyMaterial64.
	KeyMaterialSize = 64

	// DefaultRoundsExponent is used by DefaultEncrypt: 2^10 stretching rounds.
	DefaultRoundsExponent RoundsExponent = 10
	// MaxRoundsExponent is the largest accepted rounds exponent.
	MaxRoundsExponent RoundsExponent = 31

	// ArmorPrefix starts every VisualCrypt text.
	ArmorPrefix = "VisualCrypt/"
	// ArmorLineWidth is the base64 line length of the armor.
	ArmorLineWidth = 64

	// SharedSecretSize is the length returned by CalculateAndHashSharedSecret (SHA-512).
	SharedSecretSize = 64
)
