package utils

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesByExtension walks dir and returns every file whose name ends
// with ext, compared case-insensitively, in lexical order.
func FindFilesByExtension(dir string, ext string) ([]string, error) {
	var files []string
	ext = strings.ToLower(ext)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), ext) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// FileBase returns the file name of path without its extension.
func FileBase(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ExpandInputs turns a file or directory argument into the list of files
// with the given extension.
func ExpandInputs(input string, ext string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{input}, nil
	}
	return FindFilesByExtension(input, ext)
}
