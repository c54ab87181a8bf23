package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/TheusHen/VisualCrypt/vcrypt"
	"github.com/TheusHen/VisualCrypt/vcrypt/backup"
	"github.com/TheusHen/VisualCrypt/vcrypt/crypto"
	"github.com/TheusHen/VisualCrypt/vcrypt/identity"
	"github.com/TheusHen/VisualCrypt/vcrypt/protocol"
)

// ErrIncorrectPassphrase is shown for any authentication failure while decrypting.
var ErrIncorrectPassphrase = errors.New("incorrect passphrase")

// NewApp returns the visualcrypt command line application.
func NewApp() *cli.App {
	return &cli.App{
		Name:  "visualcrypt",
		Usage: "Passphrase encryption, EC key agreement and authenticated sessions",
		Flags: []cli.Flag{Debug},
		Commands: []*cli.Command{
			{
				Name:   "encrypt",
				Usage:  "Encrypt text into VisualCrypt armor",
				Flags:  []cli.Flag{PassphraseFlag, RoundsFlag, InputFileFlag, OutputFileFlag, BackupDataShardsFlag, BackupParityShardsFlag},
				Action: runEncrypt,
			},
			{
				Name:   "decrypt",
				Usage:  "Decrypt VisualCrypt armor or a backup sheet",
				Flags:  []cli.Flag{PassphraseFlag, InputFileFlag, OutputFileFlag},
				Action: runDecrypt,
			},
			{
				Name:   "keygen",
				Usage:  "Generate an EC key pair",
				Flags:  []cli.Flag{CurveFlag, MnemonicFlag, NewMnemonicFlag},
				Action: runKeygen,
			},
			{
				Name:   "shared-secret",
				Usage:  "Compute the hashed ECDH secret of a private and a peer public key",
				Flags:  []cli.Flag{PrivateKeyFlag, PublicKeyFlag},
				Action: runSharedSecret,
			},
			{
				Name:   "rng-test",
				Usage:  "Run statistical checks on the platform random source",
				Flags:  []cli.Flag{SamplesFlag, SampleLengthFlag},
				Action: runRNGTest,
			},
			{
				Name:   "serve",
				Usage:  "Accept sessions and acknowledge every request",
				Flags:  []cli.Flag{ListenAddrFlag, IdentitySeedFlag, CompressFlag},
				Action: runServe,
			},
			{
				Name:      "send",
				Usage:     "Send one request to a node and print the reply",
				ArgsUsage: "<message>",
				Flags:     []cli.Flag{PeerAddrFlag, PeerIDFlag, IdentitySeedFlag, CompressFlag},
				Action:    runSend,
			},
		},
	}
}

func newService() *crypto.Service {
	return crypto.New(nil, crypto.Options{})
}

func progressLogger(l *zap.Logger) crypto.Progress {
	last := -1
	return func(percent int, message string) {
		if percent/10 != last/10 || percent == 100 {
			l.Debug(message, zap.Int("percent", percent))
			last = percent
		}
	}
}

func readInput(c *cli.Context, cfg *Config) ([]byte, error) {
	if cfg.InputFile != "" {
		return os.ReadFile(cfg.InputFile)
	}
	return io.ReadAll(c.App.Reader)
}

func writeOutput(c *cli.Context, cfg *Config, data []byte) error {
	if cfg.OutputFile != "" {
		return os.WriteFile(cfg.OutputFile, data, 0600)
	}
	_, err := c.App.Writer.Write(data)
	return err
}

func writeJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func keyFromPassphrase(svc *crypto.Service, passphrase string) (crypto.KeyMaterial64, error) {
	km, err := svc.HashPassword(svc.NormalizePassword(passphrase))
	if err != nil {
		return crypto.KeyMaterial64{}, fmt.Errorf("invalid passphrase: %w", err)
	}
	return km, nil
}

func runEncrypt(c *cli.Context) error {
	cfg := NewConfigFromCLI(c)
	l, err := NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer l.Sync()

	if cfg.Rounds > uint(crypto.MaxRoundsExponent) {
		return fmt.Errorf("%w: rounds exponent %d exceeds %d", crypto.ErrInvalidArgument, cfg.Rounds, crypto.MaxRoundsExponent)
	}

	svc := newService()
	km, err := keyFromPassphrase(svc, cfg.Passphrase)
	if err != nil {
		return err
	}
	in, err := readInput(c, cfg)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	cipher, err := svc.Encrypt(c.Context, crypto.Cleartext{Text: string(in)}, km, crypto.RoundsExponent(cfg.Rounds), progressLogger(l))
	if err != nil {
		return fmt.Errorf("failed to encrypt: %w", err)
	}
	armor := svc.EncodeVisualCrypt(cipher)
	l.Debug("encrypted", zap.Int("cleartext_bytes", len(in)), zap.Uint("rounds_exponent", cfg.Rounds))

	if cfg.BackupData > 0 {
		sheet, err := backup.Split([]byte(armor), cfg.BackupData, cfg.BackupParity)
		if err != nil {
			return fmt.Errorf("failed to build backup sheet: %w", err)
		}
		return writeOutput(c, cfg, []byte(sheet.Encode()))
	}
	return writeOutput(c, cfg, []byte(armor+"\n"))
}

func runDecrypt(c *cli.Context) error {
	cfg := NewConfigFromCLI(c)
	l, err := NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer l.Sync()

	svc := newService()
	km, err := keyFromPassphrase(svc, cfg.Passphrase)
	if err != nil {
		return err
	}
	in, err := readInput(c, cfg)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	text := strings.TrimSpace(string(in))
	if strings.HasPrefix(text, "VisualCrypt-Backup") {
		sheet, err := backup.ParseSheet(text)
		if err != nil {
			return err
		}
		recovered, err := backup.Recover(sheet)
		if err != nil {
			return err
		}
		l.Debug("recovered armor from backup sheet")
		text = string(recovered)
	}

	cipher, err := svc.DecodeVisualCrypt(c.Context, text, nil)
	if err != nil {
		return err
	}
	out, err := svc.Decrypt(c.Context, cipher, km, progressLogger(l))
	if errors.Is(err, crypto.ErrInvalidKeyOrData) {
		return ErrIncorrectPassphrase
	}
	if err != nil {
		return err
	}
	return writeOutput(c, cfg, []byte(out.Text))
}

type keyPairOutput struct {
	Curve       string `json:"curve"`
	PrivateKey  string `json:"private_key"`
	PublicKey   string `json:"public_key"`
	PublicKeyID string `json:"public_key_id"`
	Mnemonic    string `json:"mnemonic,omitempty"`
}

func runKeygen(c *cli.Context) error {
	cfg := NewConfigFromCLI(c)
	curve, err := crypto.ParseCurve(cfg.Curve)
	if err != nil {
		return err
	}

	mnemonic := cfg.Mnemonic
	if cfg.NewMnemonic {
		entropy, err := bip39.NewEntropy(256)
		if err != nil {
			return fmt.Errorf("failed to generate entropy: %w", err)
		}
		if mnemonic, err = bip39.NewMnemonic(entropy); err != nil {
			return fmt.Errorf("failed to generate mnemonic: %w", err)
		}
	}
	var seed []byte
	if mnemonic != "" {
		if seed, err = crypto.SeedFromMnemonic(mnemonic, ""); err != nil {
			return err
		}
	}

	kp, err := newService().GenerateECKeyPairOn(curve, seed)
	if err != nil {
		return err
	}
	out := keyPairOutput{
		Curve:       kp.Curve.String(),
		PrivateKey:  hex.EncodeToString(kp.PrivateKey),
		PublicKey:   hex.EncodeToString(kp.PublicKey),
		PublicKeyID: protocol.PublicKeyID(kp.PublicKey),
	}
	if cfg.NewMnemonic {
		out.Mnemonic = mnemonic
	}
	return writeJSON(c, out)
}

func runSharedSecret(c *cli.Context) error {
	cfg := NewConfigFromCLI(c)
	priv, err := hex.DecodeString(strings.TrimSpace(cfg.PrivateKey))
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	pub, err := hex.DecodeString(strings.TrimSpace(cfg.PublicKey))
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	secret, err := newService().CalculateAndHashSharedSecret(priv, pub)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, hex.EncodeToString(secret))
	return err
}

func runRNGTest(c *cli.Context) error {
	cfg := NewConfigFromCLI(c)
	r, err := newService().TestRandomNumberGeneration(cfg.Samples, cfg.SampleLength)
	if err != nil {
		return err
	}
	if err := writeJSON(c, r.Quality); err != nil {
		return err
	}
	if !r.Quality.Passed {
		return fmt.Errorf("random source failed: %s", r.Quality.Reason)
	}
	return nil
}

func loadIdentity(seedHex string) (identity.KeyPair, error) {
	if seedHex == "" {
		return identity.Generate()
	}
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return identity.KeyPair{}, fmt.Errorf("invalid identity seed: %w", err)
	}
	return identity.FromSeed(seed)
}

func newNode(cfg *Config, l *zap.Logger) (*vcrypt.Node, error) {
	kp, err := loadIdentity(cfg.IdentitySeed)
	if err != nil {
		return nil, err
	}
	return vcrypt.NewNode(vcrypt.NodeOptions{
		Identity: kp,
		Logger:   l,
		Compress: cfg.Compress,
	})
}

func runServe(c *cli.Context) error {
	cfg := NewConfigFromCLI(c)
	l, err := NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer l.Sync()

	node, err := newNode(cfg, l)
	if err != nil {
		return err
	}
	if err := node.Listen(cfg.ListenAddr); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer node.Close()
	l.Info("node ready", zap.String("recipient_id", node.RecipientID().String()), zap.String("addr", node.ListenAddr()))

	ctx := c.Context
	for {
		conn, err := node.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.Warn("accept failed", zap.Error(err))
			continue
		}
		go serveConn(ctx, l, conn)
	}
}

func serveConn(ctx context.Context, l *zap.Logger, conn *vcrypt.Conn) {
	defer conn.Close()
	peer := conn.RemoteID().String()
	for {
		req, err := conn.Receive(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				l.Debug("session ended", zap.String("peer", peer), zap.Error(err))
			}
			return
		}
		l.Info("request", zap.String("peer", peer), zap.Int("bytes", len(req.CommandData)), zap.Uint64("use_count", conn.UseCount()))
		if err := conn.Send(ctx, append([]byte("ack "), req.CommandData...)); err != nil {
			l.Warn("reply failed", zap.String("peer", peer), zap.Error(err))
			return
		}
	}
}

func runSend(c *cli.Context) error {
	cfg := NewConfigFromCLI(c)
	l, err := NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer l.Sync()

	msg := strings.Join(c.Args().Slice(), " ")
	if msg == "" {
		return errors.New("nothing to send")
	}
	var expected identity.RecipientID
	if cfg.PeerID != "" {
		if expected, err = identity.ParseRecipientID(cfg.PeerID); err != nil {
			return err
		}
	}

	node, err := newNode(cfg, l)
	if err != nil {
		return err
	}
	conn, err := node.Dial(c.Context, cfg.PeerAddr, expected)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	if err := conn.Send(c.Context, []byte(msg)); err != nil {
		return err
	}
	reply, err := conn.Receive(c.Context)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "%s\n", reply.CommandData)
	return err
}
