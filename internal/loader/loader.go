// Package loader reads sender secret keys and recipient addresses from the
// files the operator maintains next to the config.
package loader

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/ligun0805/faucet-sender/internal/chain"
)

type KeyDecoder interface {
	DecodeKey(secret string) (chain.Account, error)
}

type AddressParser interface {
	ParseAddress(s string) (string, error)
}

// InvalidLine is an input line that was skipped.
type InvalidLine struct {
	Line int
	Text string
	Err  error
}

type Recipients struct {
	Valid   []string
	Invalid []InvalidLine
}

// ReadRecipients parses one address per line. Blank lines and lines starting
// with '#' are ignored; malformed addresses land in Invalid.
func ReadRecipients(path string, p AddressParser) (Recipients, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recipients{}, err
	}
	defer f.Close()
	return ParseRecipients(f, p)
}

func ParseRecipients(r io.Reader, p AddressParser) (Recipients, error) {
	var out Recipients
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addr, err := p.ParseAddress(line)
		if err != nil {
			out.Invalid = append(out.Invalid, InvalidLine{Line: lineNo, Text: line, Err: err})
			continue
		}
		out.Valid = append(out.Valid, addr)
	}
	return out, sc.Err()
}

// ReadSecrets returns the non-empty secrets stored in path. Spreadsheets
// (.xlsx, .xlsm, first sheet) and .csv files are read from the column whose
// header equals column; anything else is one secret per line.
func ReadSecrets(path, column string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readSheet(path, column)
	case ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return readCSV(data, column)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return lo.Compact(lo.Map(strings.Split(string(data), "\n"), func(s string, _ int) string {
			return strings.TrimSpace(s)
		})), nil
	}
}

func readSheet(path, column string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheets[0], err)
	}
	return pickColumn(rows, column)
}

func readCSV(data []byte, column string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = detectDelimiter(data)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return pickColumn(rows, column)
}

func pickColumn(rows [][]string, column string) ([]string, error) {
	if len(rows) == 0 {
		return nil, errors.New("no header row")
	}
	idx := lo.IndexOf(lo.Map(rows[0], func(h string, _ int) string {
		return strings.ToLower(strings.TrimSpace(h))
	}), strings.ToLower(strings.TrimSpace(column)))
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found in header", column)
	}
	var out []string
	for _, row := range rows[1:] {
		if idx >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[idx]); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// detectDelimiter picks ';' when the first non-empty line uses it exclusively.
func detectDelimiter(data []byte) rune {
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if strings.Contains(l, ";") && !strings.Contains(l, ",") {
			return ';'
		}
		break
	}
	return ','
}

// DecodeSenders turns secrets into accounts. Malformed keys are logged and
// skipped; a key listed twice yields one account.
func DecodeSenders(secrets []string, d KeyDecoder, log zerolog.Logger) []chain.Account {
	var out []chain.Account
	for i, s := range secrets {
		acc, err := d.DecodeKey(s)
		if err != nil {
			log.Error().Err(err).Int("index", i+1).Msg("skipping malformed sender key")
			continue
		}
		out = append(out, acc)
	}
	uniq := lo.UniqBy(out, func(a chain.Account) string { return a.Address })
	if n := len(out) - len(uniq); n > 0 {
		log.Warn().Int("duplicates", n).Msg("duplicate sender keys ignored")
	}
	return uniq
}

// Senders collects inline secrets followed by the ones in file (if set).
func Senders(inline []string, file, column string, d KeyDecoder, log zerolog.Logger) ([]chain.Account, error) {
	secrets := append([]string(nil), inline...)
	if file != "" {
		fromFile, err := ReadSecrets(file, column)
		if err != nil {
			return nil, fmt.Errorf("senders file %s: %w", file, err)
		}
		log.Info().Str("file", file).Int("keys", len(fromFile)).Msg("sender keys loaded")
		secrets = append(secrets, fromFile...)
	}
	return DecodeSenders(secrets, d, log), nil
}
