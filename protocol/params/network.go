package params

import "time"

// NetworkID names the ledger network. It doubles as the mDNS service tag so
// nodes of unrelated networks on the same LAN do not discover each other.
const NetworkID = "floodchain"

// DifficultyPrefix is compared against the leading bytes of the raw SHA-256
// digest, not its hex form. The two bytes are the ASCII codes for "0" (0x30).
var DifficultyPrefix = [2]byte{'0', '0'}

// Genesis block fields. The genesis block is never mined; only its timestamp
// varies between nodes.
const (
	GenesisSentinel = "genesis"
	GenesisNonce    = uint64(123)
)

// StartupDelay is how long a node waits after launch before installing its
// genesis block and asking a known peer for its chain.
const StartupDelay = time.Second

// MineCheckInterval is how many nonces the miner tries between checks of its
// cancellation signal.
const MineCheckInterval = 4096
