package archive

// Archive stores raw scan snapshots for later inspection. A nil Archive
// disables snapshotting.
type Archive interface {
	Store(filename string, data []byte) error
	Retrieve(filename string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(filename string) error
}
