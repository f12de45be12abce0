//go:build !linux && !darwin

package diskspace

// Available reports the bytes available on the filesystem holding path.
func Available(path string) (uint64, error) {
	return 0, ErrUnsupported
}
