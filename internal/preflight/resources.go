package preflight

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// Resource floors below which indexing is known to fail.
const (
	MinDiskSpaceBytes  uint64 = 100 << 20
	MinFileDescriptors uint64 = 1024
)

// CheckDiskSpace reports free space on the filesystem holding path.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return failed("disk_space", fmt.Sprintf("statfs %s: %v", path, err))
	}

	free := st.Bavail * uint64(st.Bsize)
	return floor("disk_space", free, MinDiskSpaceBytes,
		fmt.Sprintf("%s free (minimum: %s)", humanize.IBytes(free), humanize.IBytes(MinDiskSpaceBytes)),
		path)
}

// CheckFileDescriptors compares the soft open-file limit with the number of
// segment files an index may hold open.
func (c *Checker) CheckFileDescriptors() CheckResult {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return failed("file_descriptors", fmt.Sprintf("getrlimit: %v", err))
	}

	r := floor("file_descriptors", lim.Cur, MinFileDescriptors,
		fmt.Sprintf("%d (minimum: %d)", lim.Cur, MinFileDescriptors), "")
	if r.Status == StatusFail {
		r.Details = "Raise it with: ulimit -n 4096"
	}
	return r
}

// floor builds a required result that fails when have < want.
func floor(name string, have, want uint64, msg, details string) CheckResult {
	r := CheckResult{Name: name, Required: true, Status: StatusPass, Message: msg, Details: details}
	if have < want {
		r.Status = StatusFail
	}
	return r
}

func failed(name, msg string) CheckResult {
	return CheckResult{Name: name, Required: true, Status: StatusFail, Message: msg}
}
