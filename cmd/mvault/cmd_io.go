package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
)

// export writes CSV to stdout by default; "mvault export container" produces
// the encrypted container format instead, optionally under its own password.
func cmdExport() {
	if len(os.Args) > 2 && os.Args[2] == "container" {
		exportContainer()
		return
	}

	resp, err := apiRequest("GET", "/io/csv/export", nil)
	if err != nil {
		fatal("is the server running? (%v)", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		fatal("%v", apiResult(resp, nil))
	}
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		fatal("writing export: %v", err)
	}
	fmt.Fprintln(os.Stderr, "Warning: CSV exports contain passwords in plain text.")
}

func exportContainer() {
	pw, err := promptPassword("Export password (empty = master key only): ")
	if err != nil {
		fatal("reading password: %v", err)
	}

	resp, err := apiRequest("POST", "/io/container/export", map[string]string{"password": pw})
	if err != nil {
		fatal("is the server running? (%v)", err)
	}
	var out struct {
		Data string `json:"data"`
	}
	if err := apiResult(resp, &out); err != nil {
		fatal("%v", err)
	}
	data, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		fatal("decoding export: %v", err)
	}
	if _, err := os.Stdout.Write(data); err != nil {
		fatal("writing export: %v", err)
	}
}

func cmdImport() {
	if len(os.Args) < 3 {
		fatal("usage: mvault import <file> [add|replace]")
	}
	mode := "add"
	if len(os.Args) > 3 {
		mode = os.Args[3]
	}

	data, err := os.ReadFile(os.Args[2])
	if err != nil {
		fatal("reading %s: %v", os.Args[2], err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	resp, err := apiRequest("POST", "/io/detect", map[string]string{"data": encoded})
	if err != nil {
		fatal("is the server running? (%v)", err)
	}
	var detected struct {
		Format string `json:"format"`
	}
	if err := apiResult(resp, &detected); err != nil {
		fatal("%v", err)
	}

	var res struct {
		Imported int `json:"imported"`
		Skipped  int `json:"skipped"`
	}
	switch detected.Format {
	case "csv":
		resp, err = apiRequest("POST", "/io/csv/import", map[string]string{
			"text": string(data),
			"mode": mode,
		})
		if err != nil {
			fatal("is the server running? (%v)", err)
		}
		if err := apiResult(resp, &res); err != nil {
			fatal("%v", err)
		}
	case "container":
		if err := importContainer(encoded, mode, "", &res); err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Constraint == "password_required" {
				pw, perr := promptPassword("Import password: ")
				if perr != nil {
					fatal("reading password: %v", perr)
				}
				err = importContainer(encoded, mode, pw, &res)
			}
			if err != nil {
				fatal("%v", err)
			}
		}
	default:
		fatal("not a recognized CSV or vault export file")
	}

	fmt.Printf("Imported %d entries", res.Imported)
	if res.Skipped > 0 {
		fmt.Printf(", skipped %d invalid rows", res.Skipped)
	}
	fmt.Println()
}

func importContainer(encoded, mode, password string, res any) error {
	resp, err := apiRequest("POST", "/io/container/import", map[string]string{
		"data":     encoded,
		"mode":     mode,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("is the server running? (%w)", err)
	}
	return apiResult(resp, res)
}
