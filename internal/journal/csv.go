package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"divergence_bot/internal/models"
)

// CSVSink дописывает строки в файл; заголовок пишется, если файл новый или пустой.
type CSVSink struct {
	path string
}

func NewCSVSink(path string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("csv journal dir: %w", err)
		}
	}
	return &CSVSink{path: path}, nil
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Write(_ context.Context, rec models.TradeRecord) (err error) {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	st, err := f.Stat()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := cw.Write(Columns()); err != nil {
			return err
		}
	}
	if err := cw.Write(Row(rec)); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func (s *CSVSink) Close() error { return nil }
