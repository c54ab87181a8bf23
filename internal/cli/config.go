package cli

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

type Config struct {
	Debug        bool
	Passphrase   string
	Rounds       uint
	InputFile    string
	OutputFile   string
	BackupData   int
	BackupParity int
	Curve        string
	Mnemonic     string
	NewMnemonic  bool
	PrivateKey   string
	PublicKey    string
	Samples      int
	SampleLength int
	ListenAddr   string
	PeerAddr     string
	PeerID       string
	IdentitySeed string
	Compress     bool
}

// NewConfigFromCLI collects every flag; flags a command does not define read
// as their zero value.
func NewConfigFromCLI(c *cli.Context) *Config {
	return &Config{
		Debug:        c.Bool(Debug.Name),
		Passphrase:   c.String(PassphraseFlag.Name),
		Rounds:       c.Uint(RoundsFlag.Name),
		InputFile:    c.String(InputFileFlag.Name),
		OutputFile:   c.String(OutputFileFlag.Name),
		BackupData:   c.Int(BackupDataShardsFlag.Name),
		BackupParity: c.Int(BackupParityShardsFlag.Name),
		Curve:        c.String(CurveFlag.Name),
		Mnemonic:     c.String(MnemonicFlag.Name),
		NewMnemonic:  c.Bool(NewMnemonicFlag.Name),
		PrivateKey:   c.String(PrivateKeyFlag.Name),
		PublicKey:    c.String(PublicKeyFlag.Name),
		Samples:      c.Int(SamplesFlag.Name),
		SampleLength: c.Int(SampleLengthFlag.Name),
		ListenAddr:   c.String(ListenAddrFlag.Name),
		PeerAddr:     c.String(PeerAddrFlag.Name),
		PeerID:       c.String(PeerIDFlag.Name),
		IdentitySeed: c.String(IdentitySeedFlag.Name),
		Compress:     c.Bool(CompressFlag.Name),
	}
}

func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
