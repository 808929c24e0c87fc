package badger

// Key prefixes for different data types
const (
	vectorRecordPrefix = "vecrec"
)

// makeCollectionPrefix generates the prefix shared by every record in a collection.
// Format: prefix:collection:
func makeCollectionPrefix(collection string) []byte {
	return []byte(vectorRecordPrefix + ":" + collection + ":")
}

// makeRecordKey generates a key for a record by collection and ID.
// Format: prefix:collection:id
func makeRecordKey(collection, id string) []byte {
	prefix := makeCollectionPrefix(collection)
	buf := make([]byte, 0, len(prefix)+len(id))
	buf = append(buf, prefix...)
	return append(buf, id...)
}
