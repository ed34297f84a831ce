//go:build linux

package osmux

import (
	"testing"

	"golang.org/x/sys/unix"
)

func pipeFds(t *testing.T) (r, w int, err error) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe2(fds[:], 0); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func closeFd(fd int) {
	unix.Close(fd)
}

func writeByte(t *testing.T, fd int) {
	t.Helper()
	if _, err := unix.Write(fd, []byte{0x1}); err != nil {
		t.Fatalf("write: %v", err)
	}
}
