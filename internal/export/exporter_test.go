package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/skalibog/bnlive/pkg/models"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func sampleBars() []models.EnrichedBar {
	return []models.EnrichedBar{
		{
			Bar:      models.Bar{Time: time.Date(2024, 3, 4, 15, 30, 0, 0, ist), Open: 48000, High: 48050.5, Low: 47990, Close: 48040.25, Volume: 1200},
			EMA20:    47980.12,
			StochRSI: 0.25,
			Trend:    models.TrendUp,
			Signal:   models.SignalCEBuy,
		},
		{
			Bar:      models.Bar{Time: time.Date(2024, 3, 4, 15, 25, 0, 0, ist), Open: 47990, High: 48010, Low: 47980, Close: 48000, Volume: 0},
			EMA20:    47970,
			StochRSI: 0.5,
			Trend:    models.TrendSideways,
			Signal:   models.SignalNoTrade,
			Remark:   "Sideways",
		},
	}
}

func TestCSVExport(t *testing.T) {
	var buf bytes.Buffer
	if err := (CSVExporter{}).Export(&buf, sampleBars()); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(records))
	}
	if records[0][0] != "Datetime" || records[0][len(Header)-1] != "Remark" {
		t.Fatalf("unexpected header %v", records[0])
	}
	want := []string{"2024-03-04 15:30:00+05:30", "48040.25", "48050.5", "47990", "48000", "1200", "47980.12", "0.25", "UP", "CE BUY", ""}
	for i := range want {
		if records[1][i] != want[i] {
			t.Fatalf("column %s: got %q, want %q", Header[i], records[1][i], want[i])
		}
	}
	if records[2][8] != "Sideways" || records[2][9] != "NO TRADE" || records[2][10] != "Sideways" {
		t.Fatalf("unexpected second row %v", records[2])
	}
}

func TestCSVExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := (CSVExporter{}).Export(&buf, nil); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	records, _ := csv.NewReader(&buf).ReadAll()
	if len(records) != 1 {
		t.Fatalf("expected only header, got %d rows", len(records))
	}
}

func TestJSONExport(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONExporter{}).Export(&buf, sampleBars()); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	var decoded []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0]["signal"] != "CE BUY" || decoded[1]["trend"] != "Sideways" {
		t.Fatalf("unexpected JSON %v", decoded)
	}

	buf.Reset()
	if err := (JSONExporter{}).Export(&buf, nil); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if got := bytes.TrimSpace(buf.Bytes()); string(got) != "[]" {
		t.Fatalf("empty table must encode as [], got %s", got)
	}
}

func TestParquetExport(t *testing.T) {
	var buf bytes.Buffer
	if err := (ParquetExporter{}).Export(&buf, sampleBars()); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	rows, err := parquet.Read[Row](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("cannot read parquet back: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Signal != "CE BUY" || rows[0].Volume != 1200 || rows[1].Remark != "Sideways" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestNewExporter(t *testing.T) {
	for format, ext := range map[string]string{"csv": "csv", "JSON": "json", " parquet ": "parquet", "": "csv"} {
		e, err := NewExporter(format)
		if err != nil {
			t.Fatalf("NewExporter(%q) returned error: %v", format, err)
		}
		if e.Extension() != ext {
			t.Fatalf("NewExporter(%q) extension = %s, want %s", format, e.Extension(), ext)
		}
	}
	if _, err := NewExporter("xlsx"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := WriteFile(dir, "BankNifty_Live", CSVExporter{}, sampleBars())
	if err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}
	if filepath.Base(path) != DefaultFilename {
		t.Fatalf("unexpected file name %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("cannot read export: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("Datetime,Close,High")) {
		t.Fatalf("unexpected content %q", data)
	}
}
