// Package p2p implements the floodsub transport, peer discovery and identity
// handling for a ledger node.
package p2p

import (
	"crypto/rand"
	"log"
	"os"
	"path/filepath"

	"floodchain/protocol/params"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

// IdentityKeyEnv names the environment variable holding a persistent key path.
const IdentityKeyEnv = "FLOODCHAIN_P2P_KEY"

// IdentityConfig configures identity behavior
type IdentityConfig struct {
	// KeyPath is where a persistent key is loaded from or created at.
	// Empty means: use FLOODCHAIN_P2P_KEY, then the config dir key if it
	// exists, otherwise an ephemeral key.
	KeyPath string
}

// DefaultIdentityConfig returns sensible defaults
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{}
}

// LoadIdentity resolves the node's key material.
//
// Resolution order:
//  1. cfg.KeyPath, then FLOODCHAIN_P2P_KEY → load or create key at that path
//  2. config dir (e.g. ~/.config/floodchain/identity.key) → load if it exists
//  3. otherwise → ephemeral key, gone on exit
func LoadIdentity(cfg IdentityConfig) (crypto.PrivKey, peer.ID, error) {
	path := cfg.KeyPath
	if path == "" {
		path = os.Getenv(IdentityKeyEnv)
	}

	if path != "" {
		key, id, err := loadIdentity(path)
		if err == nil {
			log.Printf("Loaded persistent identity: %s (from %s)", shortPeer(id), path)
			return key, id, nil
		}
		if !os.IsNotExist(err) {
			return nil, "", err
		}

		key, id, err = generateIdentity()
		if err != nil {
			return nil, "", err
		}
		if err := saveIdentity(path, key); err != nil {
			return nil, "", err
		}
		log.Printf("Generated new persistent identity: %s (saved to %s)", shortPeer(id), path)
		return key, id, nil
	}

	if dirPath, err := defaultIdentityPath(); err == nil {
		if key, id, err := loadIdentity(dirPath); err == nil {
			log.Printf("Loaded persistent identity: %s (from %s)", shortPeer(id), dirPath)
			return key, id, nil
		}
	}

	return generateIdentity()
}

// defaultIdentityPath returns the config dir path for the identity key
func defaultIdentityPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, params.NetworkID, "identity.key"), nil
}

// loadIdentity loads an identity from disk
func loadIdentity(path string) (crypto.PrivKey, peer.ID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}

	key, err := crypto.UnmarshalPrivateKey(data)
	if err != nil {
		return nil, "", err
	}

	id, err := peer.IDFromPrivateKey(key)
	if err != nil {
		return nil, "", err
	}

	return key, id, nil
}

// saveIdentity saves an identity to disk
func saveIdentity(path string, key crypto.PrivKey) error {
	data, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// generateIdentity creates a new Ed25519 keypair for peer identity
func generateIdentity() (crypto.PrivKey, peer.ID, error) {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, "", err
	}

	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, "", err
	}

	return priv, id, nil
}
