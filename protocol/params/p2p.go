package params

// Floodsub topic names. Topic strings are part of the wire contract with
// peers and must not change.
const (
	// TopicChains carries ChainRequest and ChainResponse messages.
	TopicChains = "chains"

	// TopicBlocks carries bare block announcements.
	TopicBlocks = "blocks"
)

const (
	// MaxMessageSize caps a single published payload (4 MB). A full chain
	// response is the largest message a node sends.
	MaxMessageSize = 4 * 1024 * 1024

	// UserAgent is announced to peers through libp2p identify.
	UserAgent = "floodchain/" + Version
)

// Version of the node software.
const Version = "0.1.0"
