package app

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadURLs reads one URL per line. Blank lines and lines starting with '#'
// are skipped, as are duplicates.
func ReadURLs(r io.Reader) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read urls: %w", err)
	}
	return out, nil
}

// ReadURLFile opens path and calls ReadURLs. "-" reads standard input.
func ReadURLFile(path string) ([]string, error) {
	if path == "-" {
		return ReadURLs(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadURLs(f)
}
