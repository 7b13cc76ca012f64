// Package roster loads and saves the competitor list as a delimited file of
// name and club.
package roster

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/pkg/logger"
)

// Store reads and writes the roster.
type Store interface {
	Load(ctx context.Context) ([]model.Entrant, error)
	Save(ctx context.Context, entrants []model.Entrant) error
}

// CSVStore keeps the roster in a file. Load accepts comma, tab or semicolon
// separated input with an optional UTF-8 byte order mark; Save writes
// comma separated UTF-8.
type CSVStore struct {
	path   string
	logger logger.Logger
}

// NewCSVStore returns a store for path.
func NewCSVStore(path string, l logger.Logger) *CSVStore {
	if l == nil {
		l = logger.Get().Named("roster")
	}
	return &CSVStore{path: path, logger: l}
}

// Path returns the file the store reads and writes.
func (s *CSVStore) Path() string { return s.path }

// Load reads the roster. A missing file is an empty roster.
func (s *CSVStore) Load(ctx context.Context) ([]model.Entrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn(ctx, "roster file not found, starting empty", logger.String("path", s.path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	entrants, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", s.path, err)
	}
	s.logger.Info(ctx, "roster loaded", logger.String("path", s.path), logger.Int("competitors", len(entrants)))
	return entrants, nil
}

// Save replaces the file with entrants.
func (s *CSVStore) Save(ctx context.Context, entrants []model.Entrant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create roster dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".roster-*.csv")
	if err != nil {
		return fmt.Errorf("create roster: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, entrants); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close roster: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace roster: %w", err)
	}
	return nil
}

// Parse reads delimited roster rows. The first row is a header; columns
// named name and club (any case) are used, otherwise the first column is
// the name. Rows without a name get the next free C<n> name.
func Parse(r io.Reader) ([]model.Entrant, error) {
	data, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniff(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	nameCol, clubCol := 0, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name":
			nameCol = i
		case "club":
			clubCol = i
		}
	}

	var out []model.Entrant
	var unnamed []int
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(row) {
			continue
		}
		e := model.Entrant{Name: field(row, nameCol), Club: field(row, clubCol)}
		if e.Name == "" {
			unnamed = append(unnamed, len(out))
		}
		out = append(out, e)
	}
	for _, i := range unnamed {
		out[i].Name = NextName(out)
	}
	return out, nil
}

// Write encodes entrants with a name,club header.
func Write(w io.Writer, entrants []model.Entrant) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "club"}); err != nil {
		return err
	}
	for _, e := range entrants {
		if err := cw.Write([]string{e.Name, e.Club}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// NextName returns C<n> with n one above the highest C<number> in use.
func NextName(entrants []model.Entrant) string {
	highest := 0
	for _, e := range entrants {
		if n, ok := strings.CutPrefix(e.Name, "C"); ok {
			if v, err := strconv.Atoi(n); err == nil && v > highest {
				highest = v
			}
		}
	}
	return "C" + strconv.Itoa(highest+1)
}

// Merge appends the loaded entrants whose names are not already present.
func Merge(current, loaded []model.Entrant) []model.Entrant {
	seen := make(map[string]bool, len(current))
	out := make([]model.Entrant, 0, len(current)+len(loaded))
	for _, e := range current {
		seen[e.Name] = true
		out = append(out, e)
	}
	for _, e := range loaded {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		out = append(out, e)
	}
	return out
}

// sniff picks the most frequent candidate delimiter on the header line.
func sniff(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', '\t', ';'} {
		if c := bytes.Count(line, []byte(string(d))); c > bestCount {
			best, bestCount = d, c
		}
	}
	return best
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
