package logs

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/onsell/backoffice/internal/metrics"
)

type Format string

const (
	FormatCSV       Format = "csv"
	FormatJSON      Format = "json"
	FormatLegacyCSV Format = "csv-legacy"
)

var Formats = []Format{FormatCSV, FormatJSON, FormatLegacyCSV}

var csvHeader = []string{"Data", "Mensagem", "Usuario", "IP", "Tipo", "Nivel"}

func ParseFormat(value string) (Format, error) {
	if value == "" {
		return FormatCSV, nil
	}
	for _, f := range Formats {
		if string(f) == value {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, value)
}

func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

func (f Format) Extension() string {
	if f == FormatJSON {
		return "json"
	}
	return "csv"
}

func csvRecord(e Entry) []string {
	return []string{e.FormattedDate(), e.Message, e.User, e.IP, string(e.Type), string(e.Level)}
}

var legacyReplacer = strings.NewReplacer(",", " ", "\r", " ", "\n", " ")

// Export writes every entry matching filter to w, newest first.
func (a *Aggregator) Export(ctx context.Context, filter Filter, format Format, w io.Writer) error {
	entries, err := a.Collect(ctx, filter)
	if err != nil {
		return err
	}
	if err := WriteEntries(w, entries, format); err != nil {
		return err
	}
	metrics.LogExports.WithLabelValues(string(format)).Inc()
	return nil
}

func WriteEntries(w io.Writer, entries []Entry, format Format) error {
	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return err
		}
		for _, e := range entries {
			if err := cw.Write(csvRecord(e)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case FormatLegacyCSV:
		if _, err := io.WriteString(w, strings.Join(csvHeader, ",")+"\n"); err != nil {
			return err
		}
		for _, e := range entries {
			fields := csvRecord(e)
			for i := range fields {
				fields[i] = legacyReplacer.Replace(fields[i])
			}
			if _, err := io.WriteString(w, strings.Join(fields, ",")+"\n"); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON:
		if entries == nil {
			entries = []Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}
