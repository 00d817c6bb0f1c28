package payroll

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileWriter persists a rendered payslip and returns the path written.
type FileWriter interface {
	WriteFile(path string, data []byte) (string, error)
}

type PayslipBatch struct {
	Period    string   `json:"period"`
	Generated int      `json:"generated"`
	Files     []string `json:"files"`
}

// WritePayslips renders one PDF per record into dir/<period>/.
func WritePayslips(ctx context.Context, dir, period string, records []PayrollRecord, out FileWriter) (PayslipBatch, error) {
	target := filepath.Join(dir, FileName(period))
	if err := os.MkdirAll(target, 0o700); err != nil {
		return PayslipBatch{}, fmt.Errorf("create payslip dir: %w", err)
	}
	batch := PayslipBatch{Period: period, Files: make([]string, 0, len(records))}
	owners := make(map[string]string, len(records))
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		name := FileName(record.EmployeeID) + ".pdf"
		if owner, taken := owners[name]; taken {
			return batch, fmt.Errorf("payslip %s: file name %s already used by %s", record.EmployeeID, name, owner)
		}
		owners[name] = record.EmployeeID
		var buf bytes.Buffer
		if err := WritePayslip(&buf, record); err != nil {
			return batch, fmt.Errorf("render payslip %s: %w", record.EmployeeID, err)
		}
		path, err := out.WriteFile(filepath.Join(target, name), buf.Bytes())
		if err != nil {
			return batch, fmt.Errorf("write payslip %s: %w", record.EmployeeID, err)
		}
		batch.Files = append(batch.Files, path)
		batch.Generated++
	}
	return batch, nil
}

// SafeName maps s onto [A-Za-z0-9_-] for use as a single path element.
func SafeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(s))
	if s == "" {
		return "_"
	}
	return s
}

// FileName is SafeName with a short digest of s appended whenever the mapping
// dropped information, so distinct values keep distinct file names.
func FileName(s string) string {
	safe := SafeName(s)
	if safe == s {
		return safe
	}
	sum := sha256.Sum256([]byte(s))
	return safe + "-" + hex.EncodeToString(sum[:4])
}
