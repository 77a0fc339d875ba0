// Package codec converts vault entries to and from the two interchange
// formats: plain CSV and the encrypted container.
package codec

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/nchudnovets/merezhyvo-vault/internal/vault"
)

const (
	maxCSVBytes  = 20 << 20 // 20 MB
	maxCSVRows   = 200_000
	sampleSize   = 5
	csvHeaderRow = "name,url,username,password"
)

// headerAliases maps each logical column to the header spellings seen in
// exports from common password managers, matched case-insensitively.
var headerAliases = map[string][]string{
	"url":      {"url", "site", "origin", "website", "web site", "login_uri", "uri", "address"},
	"username": {"username", "user", "login", "email"},
	"password": {"password", "pass"},
	"name":     {"name", "title", "note", "notes"},
}

// CSVRow is one parsed data row. Preview samples carry an empty password.
type CSVRow struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"-"`
}

// CSVPreview summarizes an import without mutating the vault.
type CSVPreview struct {
	Total   int      `json:"total"`
	Valid   int      `json:"valid"`
	Invalid int      `json:"invalid"`
	Sample  []CSVRow `json:"sample"`
}

// ImportResult counts the outcome of an applied import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// PreviewCSV parses the text and reports row counts plus a small sample of
// valid rows. Sample rows never include passwords.
func PreviewCSV(text string) (CSVPreview, error) {
	rows, total, invalid, err := parseCSV(text)
	if err != nil {
		return CSVPreview{}, err
	}

	preview := CSVPreview{Total: total, Valid: len(rows), Invalid: invalid}
	for _, r := range rows[:min(len(rows), sampleSize)] {
		r.Password = ""
		preview.Sample = append(preview.Sample, r)
	}
	return preview, nil
}

// ImportCSV applies the valid rows to the vault. mode "replace" clears
// existing entries first; "add" upserts into the current set. Invalid rows
// are skipped and counted, never aborting the batch. The result is persisted
// with one Save.
func ImportCSV(v *vault.Vault, text, mode string) (ImportResult, error) {
	if mode != "add" && mode != "replace" {
		return ImportResult{}, ErrInvalidMode
	}

	rows, _, invalid, err := parseCSV(text)
	if err != nil {
		return ImportResult{}, err
	}

	if mode == "replace" {
		if err := v.RemoveAllEntries(); err != nil {
			return ImportResult{}, err
		}
	}

	res := ImportResult{Skipped: invalid}
	for _, r := range rows {
		if err := upsertRow(v, vault.EntryInput{
			Origin:   r.URL,
			Username: r.Username,
			Password: r.Password,
			Notes:    r.Name,
		}); err != nil {
			res.Skipped++
			continue
		}
		res.Imported++
	}

	if err := v.Save(); err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

// ExportCSV renders all entries with the header name,url,username,password.
// encoding/csv handles RFC-4180 quoting: embedded commas, quotes, and
// newlines are wrapped, internal quotes doubled.
func ExportCSV(v *vault.Vault) (string, error) {
	entries, err := v.ExportEntries()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(strings.Split(csvHeaderRow, ",")); err != nil {
		return "", err
	}
	for _, e := range entries {
		if err := w.Write([]string{e.Notes, e.Origin, e.Username, e.Password}); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}

// parseCSV reads the text into valid rows plus counts. The header row is
// located by alias matching; a text without url+username+password columns is
// not a credential CSV at all.
func parseCSV(text string) (rows []CSVRow, total, invalid int, err error) {
	if len(text) > maxCSVBytes {
		return nil, 0, 0, ErrSizeLimit
	}
	text = strings.TrimPrefix(text, "\ufeff")

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, 0, 0, ErrUnrecognizedFormat
	}
	cols := matchHeader(header)
	if cols["url"] < 0 || cols["username"] < 0 || cols["password"] < 0 {
		return nil, 0, 0, ErrUnrecognizedFormat
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		total++
		if total > maxCSVRows {
			return nil, 0, 0, ErrSizeLimit
		}
		if err != nil {
			invalid++
			continue
		}

		row := CSVRow{
			Name:     field(record, cols["name"]),
			URL:      field(record, cols["url"]),
			Username: field(record, cols["username"]),
			Password: field(record, cols["password"]),
		}
		if row.Username == "" || row.Password == "" {
			invalid++
			continue
		}
		origin, err := vault.NormalizeOrigin(row.URL)
		if err != nil {
			invalid++
			continue
		}
		row.URL = origin
		rows = append(rows, row)
	}
	return rows, total, invalid, nil
}

// matchHeader maps logical columns to indices, -1 when absent.
func matchHeader(header []string) map[string]int {
	cols := map[string]int{"url": -1, "username": -1, "password": -1, "name": -1}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for logical, aliases := range headerAliases {
			if cols[logical] >= 0 {
				continue
			}
			for _, a := range aliases {
				if h == a {
					cols[logical] = i
					break
				}
			}
		}
	}
	return cols
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// upsertRow updates an existing (realm, username) credential or inserts a
// new one.
func upsertRow(v *vault.Vault, input vault.EntryInput) error {
	realm := input.SignonRealm
	if realm == "" {
		r, err := vault.SignonRealm(input.Origin)
		if err != nil {
			return err
		}
		realm = r
	}
	if meta, ok, err := v.FindCredential(realm, input.Username); err == nil && ok {
		input.ID = meta.ID
	}
	_, err := v.AddOrUpdate(input)
	return err
}
