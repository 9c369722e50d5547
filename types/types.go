// Package types defines the protocol messages exchanged between a
// consensus engine and the ABCI adapter.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Transport concerns
// (gRPC codec registration) are handled in the transport packages.
package types

// Result codes carried by CheckTx, DeliverTx and Query responses.
const (
	CodeOK           uint32 = 0
	CodeInvalidTx    uint32 = 1
	CodeInvalidQuery uint32 = 2
	CodeNotFound     uint32 = 3
)

// InfoRequest asks the application for its last committed state.
type InfoRequest struct {
	Version string `cramberry:"1"`
}

// InfoResponse reports the last committed height and app hash. Both are
// zero for a fresh chain.
type InfoResponse struct {
	Data             string `cramberry:"1"`
	LastBlockHeight  int64  `cramberry:"2"`
	LastBlockAppHash []byte `cramberry:"3"`
}

// InitChainRequest is sent once, at genesis.
type InitChainRequest struct {
	ChainID    string      `cramberry:"1"`
	Time       Timestamp   `cramberry:"2"`
	Validators []Validator `cramberry:"3"`
	// Application genesis state as JSON. Empty = use the node's default.
	AppState      []byte `cramberry:"4"`
	InitialHeight int64  `cramberry:"5"`
}

type InitChainResponse struct{}

// CheckTxType distinguishes first-seen transactions from re-validation
// after a commit.
type CheckTxType uint8

const (
	CheckTxNew     CheckTxType = 0
	CheckTxRecheck CheckTxType = 1
)

func (t CheckTxType) String() string {
	if t == CheckTxRecheck {
		return "recheck"
	}
	return "new"
}

type CheckTxRequest struct {
	Tx   []byte      `cramberry:"1"`
	Type CheckTxType `cramberry:"2"`
}

type CheckTxResponse struct {
	Code uint32 `cramberry:"1"`
	Log  string `cramberry:"2"`
}

// IsOK returns true if the transaction was accepted.
func (r CheckTxResponse) IsOK() bool { return r.Code == CodeOK }

// Header is the subset of the block header the adapter consumes.
type Header struct {
	ChainID         string    `cramberry:"1"`
	Height          int64     `cramberry:"2"`
	Time            Timestamp `cramberry:"3"`
	ProposerAddress []byte    `cramberry:"4"`
}

type BeginBlockRequest struct {
	Hash   []byte `cramberry:"1"`
	Header Header `cramberry:"2"`
}

type BeginBlockResponse struct{}

type DeliverTxRequest struct {
	Tx []byte `cramberry:"1"`
}

type DeliverTxResponse struct {
	Code uint32 `cramberry:"1"`
	Log  string `cramberry:"2"`
}

// IsOK returns true if the transaction executed successfully.
func (r DeliverTxResponse) IsOK() bool { return r.Code == CodeOK }

type EndBlockRequest struct {
	Height int64 `cramberry:"1"`
}

// EndBlockResponse carries the complete validator set, not a delta.
type EndBlockResponse struct {
	ValidatorUpdates []ValidatorUpdate `cramberry:"1"`
}

// CommitRequest is empty. Commit takes no arguments, but the gRPC
// transport needs a request message.
type CommitRequest struct{}

// CommitResponse carries the app hash of the committed block.
type CommitResponse struct {
	Data []byte `cramberry:"1"`
}
