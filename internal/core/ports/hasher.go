package ports

// Hasher defines the interface for computing digests.
//
//go:generate mockgen -destination=mocks/hasher_mock.go -package=mocks -source=hasher.go
type Hasher interface {
	// Hash returns the hex digest of data.
	Hash(data []byte) string

	// Combine returns the digest of an ordered list of parts.
	// Parts are separated so that ("ab", "c") and ("a", "bc") differ.
	Combine(parts ...string) string
}
