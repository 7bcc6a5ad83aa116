package esplog

import (
	"context"
	"fmt"
	"io"

	"github.com/melaurent/kafero"
)

// ParseFile decodes the log stored at name in fs.
func ParseFile(ctx context.Context, fs kafero.Fs, name string, opts ...Option) (*Result, error) {
	data, err := readFile(fs, name)
	if err != nil {
		return nil, err
	}
	return ParseBytes(ctx, data, opts...)
}

// DetectFile reports whether the file at name in fs starts with the log magic.
func DetectFile(fs kafero.Fs, name string) (bool, error) {
	file, err := fs.Open(name)
	if err != nil {
		return false, fmt.Errorf("error opening log: %w", err)
	}
	defer file.Close()

	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(file, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, fmt.Errorf("error reading log header: %w", err)
	}
	return Detect(header), nil
}

func readFile(fs kafero.Fs, name string) ([]byte, error) {
	file, err := fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("error opening log: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("error reading log: %w", err)
	}
	return data, nil
}
