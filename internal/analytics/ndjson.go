package analytics

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/divijg19/lakecross/internal/core"
)

const maxLine = 4 << 20

// ReadNDJSON splits newline-delimited JSON into documents. Blank lines are ignored; lines
// are not validated here so a single bad line is skipped later instead of failing the batch.
func ReadNDJSON(r io.Reader) ([]json.RawMessage, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	var docs []json.RawMessage
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		docs = append(docs, json.RawMessage(bytes.Clone(line)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ndjson: %w", err)
	}
	return docs, nil
}

// WriteNDJSON writes one record per line.
func WriteNDJSON(w io.Writer, records []core.SessionRecord) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write ndjson: %s: %w", r.ID, err)
		}
	}
	return nil
}

// FileSource reads an NDJSON export from local disk.
type FileSource struct {
	Path string
}

func (f FileSource) Documents(ctx context.Context) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer fh.Close()
	return ReadNDJSON(fh)
}
