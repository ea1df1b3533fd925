package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mosaicnetworks/surety/src/config"
	"github.com/mosaicnetworks/surety/src/crypto/keys"
	"github.com/spf13/cobra"
)

var (
	privKeyFile           string
	pubKeyFile            string
	oracleKeys            int
	defaultPrivateKeyFile = filepath.Join(_config.Surety.DataDir, config.DefaultKeyfile)
	defaultPublicKeyFile  = filepath.Join(_config.Surety.DataDir, "key.pub")
)

// NewKeygenCmd produces a KeygenCmd which create a key pair
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create new key pair",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&privKeyFile, "priv", defaultPrivateKeyFile, "File where the private key will be written")
	cmd.Flags().StringVar(&pubKeyFile, "pub", defaultPublicKeyFile, "File where the public key will be written")
	cmd.Flags().IntVar(&oracleKeys, "oracles", 0, "Number of oracle keys to create next to the private key")
}

func keygen(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(privKeyFile); err == nil {
		return fmt.Errorf("A key already lives under: %s", filepath.Dir(privKeyFile))
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return fmt.Errorf("Error generating ECDSA key")
	}

	if err := keys.NewSimpleKeyfile(privKeyFile).WriteKey(key); err != nil {
		return fmt.Errorf("Writing private key: %s", err)
	}

	fmt.Printf("Your private key has been saved to: %s\n", privKeyFile)

	if err := os.MkdirAll(filepath.Dir(pubKeyFile), 0700); err != nil {
		return fmt.Errorf("Writing public key: %s", err)
	}

	pub := keys.PublicKeyHex(&key.PublicKey)

	if err := os.WriteFile(pubKeyFile, []byte(pub), 0600); err != nil {
		return fmt.Errorf("Writing public key: %s", err)
	}

	fmt.Printf("Your public key has been saved to: %s\n", pubKeyFile)
	fmt.Printf("Your address is: %s\n", keys.Address(&key.PublicKey).Hex())

	return writeOracleKeys(filepath.Dir(privKeyFile), oracleKeys)
}

// writeOracleKeys creates the missing oracle keys under dataDir.
func writeOracleKeys(dataDir string, n int) error {
	conf := config.Config{DataDir: dataDir}

	for i := 0; i < n; i++ {
		kf := keys.NewSimpleKeyfile(conf.OracleKeyfile(i))

		_, created, err := kf.ReadOrCreateKey()
		if err != nil {
			return fmt.Errorf("Writing oracle key %d: %s", i, err)
		}
		if created {
			fmt.Printf("Oracle key %d saved to: %s\n", i, kf.Path())
		}
	}

	return nil
}
