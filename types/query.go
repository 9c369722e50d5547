package types

// QueryRequest is a read against application state or the diff journal.
type QueryRequest struct {
	// "diff" (raw or base64) selects the diff journal.
	Data []byte `cramberry:"1"`
	// Dot-separated path into the result. Empty = root.
	Path string `cramberry:"2"`
	// Height to query at. Zero = default for the mode.
	Height int64 `cramberry:"3"`
	// Proofs are not supported; the flag is accepted and ignored.
	Prove bool `cramberry:"4"`
}

// QueryResponse is the result of a query. Value holds the base64 text of
// the canonical JSON result.
type QueryResponse struct {
	Code   uint32 `cramberry:"1"`
	Log    string `cramberry:"2"`
	Value  []byte `cramberry:"3"`
	Height int64  `cramberry:"4"`
}

// IsOK returns true if the query succeeded.
func (r QueryResponse) IsOK() bool { return r.Code == CodeOK }
