package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shieldai/cetp-monitor/internal/config"
	"github.com/shieldai/cetp-monitor/internal/model"
)

// Source returns the raw rows of one append-only tabular file. Rows reads
// the whole file in one call and returns every row at once; rows are not
// streamed one by one, and the file is not tailed or re-read for bytes
// appended later.
type Source interface {
	// Rows returns every row in file order, header excluded.
	Rows() ([]map[string]string, error)
}

// FileSource reads one CSV file with a header row.
type FileSource struct {
	Path string
}

func (f FileSource) Rows() ([]map[string]string, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header %s: %w", f.Path, err)
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %s: %w", f.Path, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Result is the output of one Ingest pass over a source: the BLACKOUT-inclusive
// full stream plus the numeric-only clean stream, and the quarantine records
// for rows the validator rejected.
type Result struct {
	Full       []model.Reading
	Clean      []model.Reading
	Quarantine []model.QuarantineRecord
}

// IngestCETP parses a CETP inlet CSV, tags each row NORMAL/BLACKOUT on the
// cod column, and validates every row before admitting it to the clean stream.
// Column names are looked up through cfg.CETPColumnMap rather than hardcoded,
// so a differently-headered inlet export can be read without a code change.
func IngestCETP(cfg *config.Config, src Source) (Result, error) {
	rows, err := src.Rows()
	if err != nil {
		return Result{}, err
	}
	col := cfg.CETPColumnMap

	var res Result
	for _, row := range rows {
		ts, tsErr := parseTimestamp(cfg.InputTimeFormat, row[col["timestamp"]])
		codStr := strings.TrimSpace(row[col["cod"]])
		receivedAt := time.Now().UTC()

		if tsErr != nil {
			res.Quarantine = append(res.Quarantine, model.QuarantineRecord{
				Payload: row, RejectionReason: fmt.Sprintf("invalid 'timestamp' format: %v", row[col["timestamp"]]), ReceivedAt: receivedAt,
			})
			continue
		}

		reading := model.Reading{
			SensorID:  "cetp_inlet_cod",
			Timestamp: ts,
			BOD:       parseOptional(row[col["bod"]]),
			PH:        parseOptional(row[col["ph"]]),
			TSS:       parseOptional(row[col["tss"]]),
			Raw:       row,
		}

		if codStr == "" || strings.EqualFold(codStr, "NA") {
			reading.Status = model.StatusBlackout
			res.Full = append(res.Full, reading)
			continue
		}

		cod, convErr := strconv.ParseFloat(codStr, 64)
		if convErr != nil {
			res.Quarantine = append(res.Quarantine, model.QuarantineRecord{
				Payload: row, RejectionReason: fmt.Sprintf("value must be numeric (got %q)", codStr), ReceivedAt: receivedAt,
			})
			continue
		}
		reading.Value = &cod
		reading.Status = model.StatusNormal

		valid, reason := Validate(cfg, rawRecord{SensorID: reading.SensorID, Timestamp: ts.Format(cfg.InputTimeFormat), Value: cod, Payload: row})
		if !valid {
			res.Quarantine = append(res.Quarantine, model.QuarantineRecord{Payload: row, RejectionReason: reason, ReceivedAt: receivedAt})
			continue
		}

		res.Full = append(res.Full, reading)
		res.Clean = append(res.Clean, reading)
	}
	return res, nil
}

// IngestFactory parses a factory discharge CSV, tagging BLACKOUT rows on a
// null cod column and validating every numeric row. Column names are looked
// up through cfg.FactoryColumnMap rather than hardcoded.
func IngestFactory(cfg *config.Config, src Source, factoryID string) (Result, error) {
	rows, err := src.Rows()
	if err != nil {
		return Result{}, err
	}
	col := cfg.FactoryColumnMap

	var res Result
	for _, row := range rows {
		ts, tsErr := parseTimestamp(cfg.InputTimeFormat, row[col["timestamp"]])
		receivedAt := time.Now().UTC()
		if tsErr != nil {
			res.Quarantine = append(res.Quarantine, model.QuarantineRecord{
				Payload: row, RejectionReason: fmt.Sprintf("invalid 'timestamp' format: %v", row[col["timestamp"]]), ReceivedAt: receivedAt,
			})
			continue
		}

		reading := model.Reading{
			SensorID:  factoryID,
			FactoryID: factoryID,
			Timestamp: ts,
			BOD:       parseOptional(row[col["bod"]]),
			PH:        parseOptional(row[col["ph"]]),
			TSS:       parseOptional(row[col["tss"]]),
			Raw:       row,
		}

		codStr := strings.TrimSpace(row[col["cod"]])
		if codStr == "" || strings.EqualFold(codStr, "NA") {
			reading.Status = model.StatusBlackout
			res.Full = append(res.Full, reading)
			continue
		}

		cod, convErr := strconv.ParseFloat(codStr, 64)
		if convErr != nil {
			res.Quarantine = append(res.Quarantine, model.QuarantineRecord{
				Payload: row, RejectionReason: fmt.Sprintf("value must be numeric (got %q)", codStr), ReceivedAt: receivedAt,
			})
			continue
		}
		reading.Value = &cod
		reading.Status = model.StatusNormal

		valid, reason := Validate(cfg, rawRecord{SensorID: factoryID, Timestamp: ts.Format(cfg.InputTimeFormat), Value: cod, Payload: row})
		if !valid {
			res.Quarantine = append(res.Quarantine, model.QuarantineRecord{Payload: row, RejectionReason: reason, ReceivedAt: receivedAt})
			continue
		}

		res.Full = append(res.Full, reading)
		res.Clean = append(res.Clean, reading)
	}
	return res, nil
}

func parseTimestamp(format, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(format, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if epoch, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Unix(int64(epoch), 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

func parseOptional(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "NA") {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ListFactoryFiles returns factory CSV paths sorted for deterministic load order.
func ListFactoryFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read factory dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "factory_") && strings.HasSuffix(e.Name(), ".csv") {
			paths = append(paths, dir+"/"+e.Name())
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ListCETPFiles returns CETP inlet CSV paths sorted for deterministic load
// order. Inlet exports aren't named factory_*.csv, so this matches on "cetp"
// appearing anywhere in the filename instead of a fixed prefix.
func ListCETPFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read cetp dir %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasSuffix(name, ".csv") && strings.Contains(strings.ToLower(name), "cetp") {
			paths = append(paths, dir+"/"+name)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
