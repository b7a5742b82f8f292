package cli

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mezzo-player/webext/internal/crx"
)

var (
	packKeyFile string
	packOutFile string
)

var packCmd = &cobra.Command{
	Use:   "pack <extension-dir>",
	Short: "Build a signed package from an unpacked extension directory",
	Long: `Sign and package an unpacked extension directory for local testing of the
install path. Without --key, a fresh RSA key is generated and written next
to the output package.`,
	Args: cobra.ExactArgs(1),
	RunE: runPack,
}

func init() {
	packCmd.Flags().StringVar(&packKeyFile, "key", "", "PEM file with the RSA signing key")
	packCmd.Flags().StringVar(&packOutFile, "out", "", "Output package path (default <dir>.crx)")
	rootCmd.AddCommand(packCmd)
}

func runPack(cmd *cobra.Command, args []string) error {
	dir := strings.TrimRight(args[0], string(os.PathSeparator))

	out := packOutFile
	if out == "" {
		out = dir + ".crx"
	}

	key, generated, err := loadOrGenerateKey(packKeyFile, out)
	if err != nil {
		return err
	}

	if err := crx.PackFile(dir, out, key); err != nil {
		return err
	}

	if generated != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote signing key to %s\n", generated)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Packaged %s as %s (id %s)\n", dir, out, idForKey(key))
	return nil
}

// loadOrGenerateKey reads an RSA private key from a PEM file, or generates
// one when keyFile is empty. Returns the path a generated key was saved to.
func loadOrGenerateKey(keyFile, out string) (*rsa.PrivateKey, string, error) {
	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, "", fmt.Errorf("reading key file: %w", err)
		}
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, "", fmt.Errorf("no PEM block in %s", keyFile)
		}
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, "", fmt.Errorf("parsing RSA key: %w", err)
		}
		return key, "", nil
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, "", fmt.Errorf("generating signing key: %w", err)
	}

	keyPath := strings.TrimSuffix(out, filepath.Ext(out)) + ".pem"
	pemData := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	if err := os.WriteFile(keyPath, pemData, 0600); err != nil {
		return nil, "", fmt.Errorf("writing signing key: %w", err)
	}
	return key, keyPath, nil
}

// idForKey derives the extension id the package will install under.
func idForKey(key *rsa.PrivateKey) string {
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "unknown"
	}
	return crx.ID(der)
}
