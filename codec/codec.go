// Package codec defines the serialization and compression contracts for
// checkpoint records. A Codec turns records into bytes, a Compressor
// shrinks payload blobs, and Seal/Open frame blobs so every stored value
// is self-describing about whether it was compressed.
package codec

// Codec defines the serialization contract for checkpoint records and
// index entries.
type Codec interface {
	// Marshal serializes a value to bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into a value.
	Unmarshal(data []byte, v any) error

	// Name returns the codec identifier (e.g., "json", "msgpack").
	Name() string
}

// Codec name constants.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
)

// Get returns a codec by name. Defaults to JSON.
func Get(name string) Codec {
	switch name {
	case NameMsgpack:
		return &Msgpack{}
	case NameJSON, "":
		return &JSON{}
	default:
		return &JSON{}
	}
}
