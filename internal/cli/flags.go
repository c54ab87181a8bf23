package cli

import "github.com/urfave/cli/v2"

var (
	Debug = &cli.BoolFlag{
		Name:    "debug",
		Usage:   "Enable development logging",
		EnvVars: []string{"VISUALCRYPT_DEBUG"},
	}

	PassphraseFlag = &cli.StringFlag{
		Name:     "passphrase",
		Aliases:  []string{"p"},
		Usage:    "Passphrase the key material is derived from",
		EnvVars:  []string{"VISUALCRYPT_PASSPHRASE"},
		Required: true,
	}

	RoundsFlag = &cli.UintFlag{
		Name:    "rounds",
		Usage:   "Key stretching exponent (2^n AES rounds, 0-31)",
		Value:   10,
		EnvVars: []string{"VISUALCRYPT_ROUNDS"},
	}

	InputFileFlag = &cli.StringFlag{
		Name:    "in",
		Aliases: []string{"i"},
		Usage:   "Input file (default stdin)",
	}

	OutputFileFlag = &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "Output file (default stdout)",
	}

	BackupDataShardsFlag = &cli.IntFlag{
		Name:  "backup-data",
		Usage: "Write a Reed-Solomon backup sheet with this many data shards",
	}

	BackupParityShardsFlag = &cli.IntFlag{
		Name:  "backup-parity",
		Usage: "Parity shards of the backup sheet",
		Value: 2,
	}

	CurveFlag = &cli.StringFlag{
		Name:    "curve",
		Usage:   "EC curve (x25519, secp256k1)",
		Value:   "x25519",
		EnvVars: []string{"VISUALCRYPT_CURVE"},
	}

	MnemonicFlag = &cli.StringFlag{
		Name:    "mnemonic",
		Usage:   "BIP-39 mnemonic to derive the key pair from",
		EnvVars: []string{"VISUALCRYPT_MNEMONIC"},
	}

	NewMnemonicFlag = &cli.BoolFlag{
		Name:  "new-mnemonic",
		Usage: "Generate a fresh 24-word mnemonic and derive the key pair from it",
	}

	PrivateKeyFlag = &cli.StringFlag{
		Name:     "private-key",
		Usage:    "Hex encoded EC private key",
		EnvVars:  []string{"VISUALCRYPT_PRIVATE_KEY"},
		Required: true,
	}

	PublicKeyFlag = &cli.StringFlag{
		Name:     "public-key",
		Usage:    "Hex encoded peer EC public key",
		Required: true,
	}

	SamplesFlag = &cli.IntFlag{
		Name:  "samples",
		Usage: "Number of random samples to draw",
		Value: 256,
	}

	SampleLengthFlag = &cli.IntFlag{
		Name:  "length",
		Usage: "Length of each random sample in bytes",
		Value: 32,
	}

	ListenAddrFlag = &cli.StringFlag{
		Name:    "listen",
		Usage:   "UDP address to accept sessions on",
		Value:   "127.0.0.1:7443",
		EnvVars: []string{"VISUALCRYPT_LISTEN"},
	}

	PeerAddrFlag = &cli.StringFlag{
		Name:     "peer",
		Usage:    "Address of the node to send to",
		EnvVars:  []string{"VISUALCRYPT_PEER"},
		Required: true,
	}

	PeerIDFlag = &cli.StringFlag{
		Name:  "peer-id",
		Usage: "Expected recipient id of the peer (hex)",
	}

	IdentitySeedFlag = &cli.StringFlag{
		Name:    "identity-seed",
		Usage:   "Hex encoded 32-byte Ed25519 seed of the node identity (random when empty)",
		EnvVars: []string{"VISUALCRYPT_IDENTITY_SEED"},
	}

	CompressFlag = &cli.BoolFlag{
		Name:    "compress",
		Usage:   "LZ4-compress session payloads",
		EnvVars: []string{"VISUALCRYPT_COMPRESS"},
	}
)
