// Package logscan searches the files of a test network for lines matching a
// pattern. It is used after a failure to surface the relevant lines of every
// node log for a human.
package logscan

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/sirupsen/logrus"
)

// ErrStop can be returned by an Each callback to end the scan early.
var ErrStop = errors.New("logscan: stop")

// sniffLen is the number of leading bytes inspected to detect binary files.
const sniffLen = 512

// Match is a single matching line.
type Match struct {
	File string
	Line int
	Text string
}

// Scanner searches the files under a root directory. It keeps no state
// between scans.
type Scanner struct {
	root string
	skip map[string]bool
}

// New returns a Scanner rooted at root.
func New(root string) *Scanner {
	return &Scanner{root: root, skip: make(map[string]bool)}
}

// Skip excludes the directories with the given names from the scan.
func (s *Scanner) Skip(names ...string) *Scanner {
	for _, n := range names {
		s.skip[n] = true
	}
	return s
}

// Each walks every regular file under the root and calls fn for each line
// matching pattern, file by file, as the files are read. Unreadable files and
// binary files are skipped. A nil pattern matches nothing.
func (s *Scanner) Each(pattern *regexp.Regexp, fn func(Match) error) error {
	if pattern == nil {
		return nil
	}

	root, err := filepath.Abs(s.root)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// a vanished or unreadable entry does not end the scan
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			if path == root {
				return walkErr
			}
			return nil
		}
		if d.IsDir() && path != root && s.skip[d.Name()] {
			return fs.SkipDir
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return scanFile(path, pattern, fn)
	})

	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

func scanFile(path string, pattern *regexp.Regexp, fn func(Match) error) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	reader := bufio.NewReader(f)

	head, _ := reader.Peek(sniffLen)
	if bytes.IndexByte(head, 0) >= 0 {
		return nil
	}

	lineNo := 0
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			line = bytes.TrimRight(line, "\r\n")
			if pattern.Match(line) {
				if cbErr := fn(Match{File: path, Line: lineNo, Text: string(line)}); cbErr != nil {
					return cbErr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return nil
		}
	}
}

// Find returns every matching line.
func (s *Scanner) Find(pattern *regexp.Regexp) ([]Match, error) {
	var matches []Match
	err := s.Each(pattern, func(m Match) error {
		matches = append(matches, m)
		return nil
	})
	return matches, err
}

// Grouped returns the matching lines keyed by absolute file path.
func (s *Scanner) Grouped(pattern *regexp.Regexp) (map[string][]string, error) {
	groups := make(map[string][]string)
	err := s.Each(pattern, func(m Match) error {
		groups[m.File] = append(groups[m.File], m.Text)
		return nil
	})
	return groups, err
}

// Report logs every matching line, grouped by file. It never fails: scan
// errors are logged too.
func (s *Scanner) Report(logger *logrus.Entry, pattern *regexp.Regexp) int {
	groups, err := s.Grouped(pattern)
	if err != nil {
		logger.WithError(err).WithField("root", s.root).Warn("Cannot scan logs")
	}

	files := make([]string, 0, len(groups))
	for f := range groups {
		files = append(files, f)
	}
	sort.Strings(files)

	total := 0
	for _, f := range files {
		lines := groups[f]
		total += len(lines)

		logger.WithFields(logrus.Fields{
			"file":    f,
			"matches": len(lines),
		}).Error("Errors found in log")

		for _, l := range lines {
			logger.WithField("file", filepath.Base(f)).Error(l)
		}
	}

	return total
}

// MarkerPattern returns a pattern matching lines that contain marker
// literally. An empty marker yields nil, which matches nothing, as
// command.ContainsMarker does.
func MarkerPattern(marker string) *regexp.Regexp {
	if marker == "" {
		return nil
	}
	return regexp.MustCompile(regexp.QuoteMeta(marker))
}
