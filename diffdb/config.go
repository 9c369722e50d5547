package diffdb

// Backend names accepted by Config.Backend.
const (
	BackendMemory  = "memory"
	BackendBolt    = "bolt"
	BackendBadger  = "badger"
	BackendLevelDB = "leveldb"
	BackendPebble  = "pebble"
)

// Config is the config for the diff database
type Config struct {
	// Backend selects the KV store implementation
	Backend string `toml:"backend"`
	// Path is the database directory. Ignored by the memory backend
	Path string `toml:"path"`
	// NumRetries is the number of write attempts before giving up
	NumRetries uint8 `toml:"num_retries"`
	// Compress enables snappy compression of stored records
	Compress bool `toml:"compress"`
}

// DefaultConfig returns the default config
var DefaultConfig = Config{
	Backend:    BackendBolt,
	Path:       "diffdb",
	NumRetries: 3,
	Compress:   true,
}
