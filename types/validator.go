package types

// KeyTypeEd25519 is the only key type emitted in validator updates.
const KeyTypeEd25519 = "ed25519"

// PublicKey represents a validator's cryptographic identity.
type PublicKey struct {
	Type string `cramberry:"1"`
	Data []byte `cramberry:"2"`
}

// Validator is a genesis validator entry.
type Validator struct {
	PubKey PublicKey `cramberry:"1"`
	Power  int64     `cramberry:"2"`
}

// VotingPower is a 64-bit power split into two 32-bit halves, the
// representation consensus engines expect on this interface.
type VotingPower struct {
	Low  uint32 `cramberry:"1"`
	High uint32 `cramberry:"2"`
}

// NewVotingPower splits p into halves.
func NewVotingPower(p uint64) VotingPower {
	return VotingPower{Low: uint32(p), High: uint32(p >> 32)}
}

// Uint64 reassembles the power.
func (v VotingPower) Uint64() uint64 {
	return uint64(v.High)<<32 | uint64(v.Low)
}

// ValidatorUpdate is one entry of the full validator set returned at
// EndBlock. Power = 0 means removal of the validator.
type ValidatorUpdate struct {
	PubKey PublicKey   `cramberry:"1"`
	Power  VotingPower `cramberry:"2"`
}
