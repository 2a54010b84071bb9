package server

import (
	"fmt"
	"os"
	"time"
)

// formatListing renders entries the way `ls -l` would: permission bits,
// link count, owner, size, modification time and name, one entry per
// line, CRLF-terminated. RFC 959 leaves LIST's exact output format to
// the server; this follows the conventional Unix layout.
func formatListing(entries []os.FileInfo) []byte {
	var buf []byte
	for _, fi := range entries {
		buf = append(buf, listLine(fi)...)
	}
	return buf
}

func listLine(fi os.FileInfo) []byte {
	mode := fi.Mode()
	kind := byte('-')
	if mode.IsDir() {
		kind = 'd'
	} else if mode&os.ModeSymlink != 0 {
		kind = 'l'
	}
	perm := permString(mode.Perm())

	mtime := fi.ModTime()
	var stamp string
	if time.Since(mtime) > 180*24*time.Hour {
		stamp = mtime.Format("Jan _2  2006")
	} else {
		stamp = mtime.Format("Jan _2 15:04")
	}

	line := fmt.Sprintf("%c%s %3d %-8s %-8s %8d %s %s\r\n",
		kind, perm, 1, "ftp", "ftp", fi.Size(), stamp, fi.Name())
	return []byte(line)
}

func permString(perm os.FileMode) string {
	const bits = "rwxrwxrwx"
	b := []byte(bits)
	for i := range b {
		if perm&(1<<uint(8-i)) == 0 {
			b[i] = '-'
		}
	}
	return string(b)
}
