// Package yamlsrc is the YAML Source Adapter: it reads a file, a directory of
// matching files, or an in-memory document and returns line-annotated
// *yaml.Node trees plus the original source lines for diagnostic rendering.
package yamlsrc

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseError reports a YAML syntax failure with source position: file,
// line, column, and the underlying parser message.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// Document is one top-level YAML document together with the source lines of
// the file it came from, for caret-style error rendering.
type Document struct {
	Root        *yaml.Node
	Index       int
	SourceLines []string
	SourcePath  string
}

// File groups every document parsed out of one input file/string.
type File struct {
	Path      string
	Documents []*Document
}

// LoadFile reads a single YAML file and returns its documents.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return loadBytes(path, data)
}

// LoadString parses an in-memory YAML document (or multi-document text).
func LoadString(label string, data []byte) (*File, error) {
	return loadBytes(label, data)
}

// LoadDir collects every file under root matching one of the given suffixes
// (e.g. ".yasl" or ".yaml"), sorted lexicographically by path for determinism,
// and parses each one.
func LoadDir(root string, suffixes ...string) ([]*File, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, suf := range suffixes {
			if hasSuffix(path, suf) {
				paths = append(paths, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	files := make([]*File, 0, len(paths))
	for _, p := range paths {
		f, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func hasSuffix(path, suffix string) bool {
	if len(path) < len(suffix) {
		return false
	}
	return path[len(path)-len(suffix):] == suffix
}

func loadBytes(path string, data []byte) (*File, error) {
	lines := splitLines(data)
	decoder := yaml.NewDecoder(bytes.NewReader(data))

	f := &File{Path: path}
	idx := 0
	for {
		var doc yaml.Node
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseError(path, err)
		}
		if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
			idx++
			continue
		}
		f.Documents = append(f.Documents, &Document{
			Root:        doc.Content[0],
			Index:       idx,
			SourceLines: lines,
			SourcePath:  path,
		})
		idx++
	}
	return f, nil
}

func splitLines(data []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

var (
	lineColRe = regexp.MustCompile(`line (\d+):\s*column (\d+)`)
	lineRe    = regexp.MustCompile(`line (\d+):`)
)

func parseError(path string, err error) *ParseError {
	msg := err.Error()
	line, col := 0, 0
	if m := lineColRe.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
		col, _ = strconv.Atoi(m[2])
	} else if m := lineRe.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
	}
	return &ParseError{Path: path, Line: line, Column: col, Msg: msg}
}
