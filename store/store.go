// Package store keeps versioned snapshots of device configuration,
// on the local filesystem or on Amazon S3 ("arn:aws:s3:" paths).
// Snapshot files share a common prefix and carry a monotonically
// increasing commit id suffix: prefix0, prefix1, ...
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/udhos/equalfile"
)

type hasPrintf interface {
	Printf(fmt string, v ...interface{})
}

type sortByCommitId struct {
	data   []string
	logger hasPrintf
}

func (s sortByCommitId) Len() int {
	return len(s.data)
}
func (s sortByCommitId) Swap(i, j int) {
	s.data[i], s.data[j] = s.data[j], s.data[i]
}
func (s sortByCommitId) Less(i, j int) bool {
	s1 := s.data[i]
	id1, err1 := ExtractCommitIdFromFilename(s1)
	if err1 != nil {
		s.logger.Printf("sortByCommitId.Less: error parsing snapshot path: '%s': %v", s1, err1)
	}
	s2 := s.data[j]
	id2, err2 := ExtractCommitIdFromFilename(s2)
	if err2 != nil {
		s.logger.Printf("sortByCommitId.Less: error parsing snapshot path: '%s': %v", s2, err2)
	}
	return id1 < id2
}

// Init prepares the store backends. Required before any S3 access.
func Init(logger hasPrintf, region string) {
	if logger == nil {
		panic("store.Init: nil logger")
	}
	s3init(logger, region)
}

// ExtractCommitIdFromFilename parses the numeric commit id suffix.
func ExtractCommitIdFromFilename(filename string) (int, error) {
	lastDot := strings.LastIndexByte(filename, '.')
	commitId := filename[lastDot+1:]
	id, err := strconv.Atoi(commitId)
	if err != nil {
		return -1, fmt.Errorf("ExtractCommitIdFromFilename: error parsing filename [%s]: %v", filename, err)
	}

	return id, nil
}

// FindLastSnapshot locates the snapshot with the highest commit id.
func FindLastSnapshot(prefix string, logger hasPrintf) (string, error) {

	dirname, matches, err := ListSnapshots(prefix, logger)
	if err != nil {
		return "", err
	}

	if len(matches) < 1 {
		return "", fmt.Errorf("FindLastSnapshot: no snapshot found for prefix: %s", prefix)
	}

	maxId := -1
	last := ""
	for _, m := range matches {
		id, idErr := ExtractCommitIdFromFilename(m)
		if idErr != nil {
			return "", fmt.Errorf("FindLastSnapshot: bad commit id: %s: %v", m, idErr)
		}
		if id >= maxId {
			maxId = id
			last = m
		}
	}

	lastPath := join(dirname, last)

	return lastPath, nil
}

// ListSnapshotsSorted lists snapshots ordered by commit id.
func ListSnapshotsSorted(prefix string, reverse bool, logger hasPrintf) (string, []string, error) {

	dirname, matches, err := ListSnapshots(prefix, logger)
	if err != nil {
		return dirname, matches, err
	}

	if reverse {
		sort.Sort(sort.Reverse(sortByCommitId{data: matches, logger: logger}))
	} else {
		sort.Sort(sortByCommitId{data: matches, logger: logger})
	}

	return dirname, matches, nil
}

func dirList(path string) (string, []string, error) {

	if s3path(path) {
		return s3dirList(path)
	}

	dirname := filepath.Dir(path)

	dir, err := os.Open(dirname)
	if err != nil {
		return dirname, nil, fmt.Errorf("dirList: error opening dir '%s': %v", dirname, err)
	}

	defer dir.Close()

	names, err2 := dir.Readdirnames(0)
	if err2 != nil {
		return dirname, nil, fmt.Errorf("dirList: error reading dir '%s': %v", dirname, err2)
	}

	return dirname, names, nil
}

// ListSnapshots lists every snapshot filename matching the prefix.
func ListSnapshots(prefix string, logger hasPrintf) (string, []string, error) {

	dirname, names, dirErr := dirList(prefix)
	if dirErr != nil {
		return dirname, nil, dirErr
	}

	basename := filepath.Base(prefix)

	// filter prefix
	matches := names[:0] // slice trick: filtering without allocating
	for _, x := range names {
		lastByte := rune(x[len(x)-1])
		if unicode.IsDigit(lastByte) && strings.HasPrefix(x, basename) {
			matches = append(matches, x)
		}
	}

	return dirname, matches, nil
}

// Join appends a path element using the backend's separator.
func Join(dirname, name string) string {
	if s3path(dirname) {
		return dirname + "/" + name
	}
	return filepath.Join(dirname, name)
}

func join(dirname, name string) string {
	return Join(dirname, name)
}

func snapshotPath(prefix, id string) string {
	return fmt.Sprintf("%s%s", prefix, id)
}

func fileExists(path string) bool {

	if s3path(path) {
		return s3fileExists(path)
	}

	if _, err := os.Stat(path); err == nil {
		return true
	}

	return false
}

func fileRemove(path string) error {

	if s3path(path) {
		return s3fileRemove(path)
	}

	return os.Remove(path)
}

func fileRename(p1, p2 string) error {

	if s3path(p1) {
		return s3fileRename(p1, p2)
	}

	return os.Rename(p1, p2)
}

// FileRead loads the full contents of a snapshot.
func FileRead(path string) ([]byte, error) {

	if s3path(path) {
		return s3fileRead(path)
	}

	return os.ReadFile(path)
}

func writeFileBuf(path string, buf []byte) error {

	if s3path(path) {
		return s3fileput(path, buf)
	}

	return os.WriteFile(path, buf, 0640)
}

// FileInfo reports modification time and size of a snapshot.
func FileInfo(path string) (time.Time, int64, error) {

	if s3path(path) {
		return s3fileInfo(path)
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		return time.Time{}, 0, statErr
	}

	return info.ModTime(), info.Size(), nil
}

func fileCompare(p1, p2 string) (bool, error) {

	if s3path(p1) || s3path(p2) {
		return s3fileCompare(p1, p2)
	}

	return equalfile.New(nil, equalfile.Options{}).CompareFile(p1, p2)
}

// MkDir creates the snapshot directory when the backend needs one.
func MkDir(path string) error {

	if s3path(path) {
		s3log("store.MkDir: silently refusing to create unneeded dir path on S3: [%s]", path)
		return nil
	}

	return os.MkdirAll(path, 0750)
}

// S3Path reports whether path addresses the S3 backend.
func S3Path(path string) bool {
	return s3path(path)
}

// SaveNewSnapshot writes contents as the next snapshot under prefix.
// With changesOnly set, contents identical to the latest snapshot are
// not duplicated - the existing path is returned. Old snapshots beyond
// maxFiles are pruned.
func SaveNewSnapshot(prefix string, maxFiles int, logger hasPrintf, contents []byte, changesOnly bool) (string, error) {

	// write to tmp file

	tmpPath := snapshotPath(prefix, "tmp")
	if fileExists(tmpPath) {
		return "", fmt.Errorf("SaveNewSnapshot: tmp file exists: [%s]", tmpPath)
	}

	if writeErr := writeFileBuf(tmpPath, contents); writeErr != nil {
		return "", fmt.Errorf("SaveNewSnapshot: error creating tmp file: [%s]: %v", tmpPath, writeErr)
	}

	defer fileRemove(tmpPath)

	// get previous file

	previousFound := true
	id := -1
	lastSnapshot, err1 := FindLastSnapshot(prefix, logger)
	if err1 != nil {
		logger.Printf("SaveNewSnapshot: no previous snapshot: [%s]: %v", prefix, err1)
		previousFound = false
	} else {
		var err2 error
		id, err2 = ExtractCommitIdFromFilename(lastSnapshot)
		if err2 != nil {
			logger.Printf("SaveNewSnapshot: error parsing snapshot path: [%s]: %v", lastSnapshot, err2)
		}
	}

	if changesOnly && previousFound {
		equal, equalErr := fileCompare(lastSnapshot, tmpPath)
		if equalErr == nil {
			if equal {
				logger.Printf("SaveNewSnapshot: refusing to create identical new file: [%s]", tmpPath)
				return lastSnapshot, nil // success
			}
			logger.Printf("SaveNewSnapshot: files differ previous=[%s] new=[%s]", lastSnapshot, tmpPath)
		} else {
			logger.Printf("SaveNewSnapshot: error comparing previous=[%s] to new=[%s]: %v", lastSnapshot, tmpPath, equalErr)
		}
	}

	// rename tmp to new file

	newCommitId := id + 1
	newFilepath := snapshotPath(prefix, strconv.Itoa(newCommitId))

	if fileExists(newFilepath) {
		return "", fmt.Errorf("SaveNewSnapshot: new file exists: [%s]", newFilepath)
	}

	if renameErr := fileRename(tmpPath, newFilepath); renameErr != nil {
		return "", fmt.Errorf("SaveNewSnapshot: could not rename '%s' to '%s': %v", tmpPath, newFilepath, renameErr)
	}

	logger.Printf("SaveNewSnapshot: saved: [%s]", newFilepath)

	eraseOldFiles(prefix, maxFiles, logger)

	return newFilepath, nil
}

func eraseOldFiles(prefix string, maxFiles int, logger hasPrintf) {

	if maxFiles < 1 {
		return
	}

	dirname, matches, err := ListSnapshotsSorted(prefix, false, logger)
	if err != nil {
		logger.Printf("eraseOldFiles: %v", err)
		return
	}

	toDelete := len(matches) - maxFiles
	if toDelete < 1 {
		return
	}

	for i := 0; i < toDelete; i++ {
		path := join(dirname, matches[i])
		logger.Printf("eraseOldFiles: delete: [%s]", path)
		if err := fileRemove(path); err != nil {
			logger.Printf("eraseOldFiles: delete: error: [%s]: %v", path, err)
		}
	}
}
