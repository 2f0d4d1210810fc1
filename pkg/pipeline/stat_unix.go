//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package pipeline

import "golang.org/x/sys/unix"

// statIdentity returns the inode and ctime of path. A file replaced by
// rename gets a new inode; one rewritten in place with its mtime restored
// still gets a new ctime.
func statIdentity(path string) (uint64, int64, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, 0, err
	}
	sec, nsec := st.Ctim.Unix()
	return uint64(st.Ino), sec*1e9 + nsec, nil
}
