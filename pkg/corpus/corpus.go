// Package corpus reads training samples from common source shapes: CSV name
// lists, line-per-sample files, and plain prose split into sentences. These
// are bounded I/O helpers; all modeling lives in package chain.
package corpus

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// NamesCSV reads the first column of a CSV stream, skipping the header row.
// Empty first-column values are dropped.
func NamesCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // column counts vary across real-world name lists

	var samples []string
	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(record) == 0 || record[0] == "" {
			continue
		}
		samples = append(samples, record[0])
	}
	return samples, nil
}

// Lines returns one sample per non-empty line, with surrounding whitespace
// trimmed.
func Lines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)

	var samples []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		samples = append(samples, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan lines: %w", err)
	}
	return samples, nil
}

// Sentences splits prose on a sentence-ending delimiter, re-appending the
// delimiter to each piece so it stays part of the learned alphabet. Line
// breaks inside a sentence collapse to single spaces; empty pieces are
// dropped.
func Sentences(r io.Reader, delim rune) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read prose: %w", err)
	}
	text := strings.Join(strings.Fields(string(data)), " ")

	var samples []string
	for _, piece := range strings.Split(text, string(delim)) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		samples = append(samples, piece+string(delim))
	}
	return samples, nil
}
