package badger

// Key schema:
//
//	c:<id>  current record (JSON)
//	r:<id>  removed record (JSON)
//
// An id lives under exactly one prefix. Badger iterates keys in byte order,
// so prefix scans return ids sorted.
const (
	prefixCurrent = "c:"
	prefixRemoved = "r:"
)

func keyCurrent(id string) []byte {
	return []byte(prefixCurrent + id)
}

func keyRemoved(id string) []byte {
	return []byte(prefixRemoved + id)
}
