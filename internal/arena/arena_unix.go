//go:build unix

package arena

import "golang.org/x/sys/unix"

type mmapRegion struct {
	data []byte
}

func newRegion(size int) (*Region, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &Region{data: data, impl: &mmapRegion{data: data}}, nil
}

func (m *mmapRegion) close() error {
	return unix.Munmap(m.data)
}
