package weights_test

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/skillgrid/assessor/internal/catalog"
	"github.com/skillgrid/assessor/internal/weights"
)

// workbook builds an in-memory xlsx whose first sheet holds rows.
func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf
}

func TestKey(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"Concurrency", "concurrency"},
		{"  Data   Modeling ", "data modeling"},
		{"Straße", "STRASSE"},
		{"Caf\u00e9", "Cafe\u0301"},
		{"Архитектура", "АРХИТЕКТУРА"},
	}

	for _, tt := range tests {
		t.Run(tt.a, func(t *testing.T) {
			if weights.Key(tt.a) != weights.Key(tt.b) {
				t.Errorf("Key(%q) = %q, Key(%q) = %q; want equal", tt.a, weights.Key(tt.a), tt.b, weights.Key(tt.b))
			}
		})
	}
	if weights.Key("Testing") == weights.Key("Tooling") {
		t.Error("distinct names must not collide")
	}
}

func TestRead(t *testing.T) {
	buf := workbook(t,
		[]any{"Weight", " Competency_Name ", "comment"},
		[]any{47, "Language", "core"},
		[]any{nil, nil},
		[]any{33, "Concurrency"},
		[]any{"", "Ignored: no weight"},
		[]any{"20", "Tooling"},
	)

	rows, err := weights.Read(buf, "")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3: %+v", len(rows), rows)
	}

	want := []struct {
		name       string
		line       int
		normalized float64
	}{
		{"Language", 2, 0.47},
		{"Concurrency", 4, 0.33},
		{"Tooling", 6, 0.20},
	}
	sum := 0.0
	for i, w := range want {
		if rows[i].Name != w.name || rows[i].Line != w.line {
			t.Errorf("rows[%d] = %+v, want %s at line %d", i, rows[i], w.name, w.line)
		}
		if math.Abs(rows[i].Normalized-w.normalized) > 1e-9 {
			t.Errorf("rows[%d].Normalized = %v, want %v", i, rows[i].Normalized, w.normalized)
		}
		sum += rows[i].Normalized
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("normalized weights sum to %v, want 1", sum)
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]any
		wantErr string
	}{
		{"missing weight column", [][]any{{"competency_name", "score"}, {"A", 1}}, "must have columns"},
		{"not a number", [][]any{{"competency_name", "weight"}, {"A", "heavy"}}, "not a number"},
		{"negative", [][]any{{"competency_name", "weight"}, {"A", -1}}, "non-negative"},
		{"zero sum", [][]any{{"competency_name", "weight"}, {"A", 0}, {"B", 0}}, "sum to zero"},
		{"no rows", [][]any{{"competency_name", "weight"}}, "no competency rows"},
		{"duplicate", [][]any{{"competency_name", "weight"}, {"Go", 1}, {" GO ", 2}}, "repeats row 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := weights.Read(workbook(t, tt.rows...), "")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Read() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRead_UnknownSheet(t *testing.T) {
	buf := workbook(t, []any{"competency_name", "weight"}, []any{"A", 1})
	if _, err := weights.Read(buf, "Weights2024"); err == nil {
		t.Fatal("Read() should fail for a missing sheet")
	}
}

func TestReadFile_Missing(t *testing.T) {
	if _, err := weights.ReadFile(filepath.Join(t.TempDir(), "absent.xlsx"), ""); err == nil {
		t.Fatal("ReadFile() should fail for a missing file")
	}
}

func seedCatalog(t *testing.T) (*catalog.MemoryStore, int64) {
	t.Helper()
	store := catalog.NewMemoryStore()
	ctx := t.Context()
	specID, err := store.EnsureSpecialization(ctx, "Backend", "Go developer", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Language", "Concurrency"} {
		if _, _, err := store.EnsureCompetency(ctx, specID, name, 1); err != nil {
			t.Fatal(err)
		}
	}
	other, _ := store.EnsureSpecialization(ctx, "Backend", "Rust developer", "")
	if _, _, err := store.EnsureCompetency(ctx, other, "Language", 1); err != nil {
		t.Fatal(err)
	}
	return store, specID
}

func rowsOf(pairs ...any) []weights.Row {
	var out []weights.Row
	sum := 0.0
	for i := 0; i < len(pairs); i += 2 {
		w := pairs[i+1].(float64)
		out = append(out, weights.Row{Line: i/2 + 2, Name: pairs[i].(string), Weight: w})
		sum += w
	}
	for i := range out {
		out[i].Normalized = out[i].Weight / sum
	}
	return out
}

func TestImport_Create(t *testing.T) {
	store, specID := seedCatalog(t)
	im := weights.NewImporter(store)
	ctx := t.Context()

	report, err := im.Import(ctx, weights.ModeCreate, "Go developer",
		rowsOf("LANGUAGE", 50.0, "Tooling", 30.0, "Testing", 20.0))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if strings.Join(report.Created, ",") != "Tooling,Testing" {
		t.Errorf("Created = %v, want Tooling, Testing", report.Created)
	}
	if strings.Join(report.Existing, ",") != "LANGUAGE" {
		t.Errorf("Existing = %v, want LANGUAGE", report.Existing)
	}

	comps, _ := store.Competencies(ctx, specID)
	if len(comps) != 4 {
		t.Fatalf("competencies = %d, want 4", len(comps))
	}
	for _, c := range comps {
		if c.Name == "Tooling" && math.Abs(c.Weight-0.3) > 1e-9 {
			t.Errorf("Tooling weight = %v, want 0.3", c.Weight)
		}
		if c.Name == "Language" && c.Weight != 1 {
			t.Errorf("existing Language weight changed to %v", c.Weight)
		}
	}
}

func TestImport_CreateUnknownSpecialization(t *testing.T) {
	store, _ := seedCatalog(t)
	im := weights.NewImporter(store)

	if _, err := im.Import(t.Context(), weights.ModeCreate, "Java developer", rowsOf("A", 1.0)); err == nil {
		t.Fatal("Import() should fail for an unknown specialization")
	}
	if _, err := im.Import(t.Context(), weights.ModeCreate, "", rowsOf("A", 1.0)); err == nil {
		t.Fatal("create without a specialization should fail")
	}
}

func TestImport_Update(t *testing.T) {
	store, _ := seedCatalog(t)
	im := weights.NewImporter(store)
	ctx := t.Context()

	report, err := im.Import(ctx, weights.ModeUpdate, "Go developer",
		rowsOf("language", 3.0, "Concurrency", 1.0, "Networking", 0.0))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(report.Updated) != 2 || strings.Join(report.NotFound, ",") != "Networking" {
		t.Errorf("report = %+v", report)
	}

	list, err := im.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, rec := range list {
		switch {
		case rec.Specialization == "Go developer" && rec.Name == "Language":
			if math.Abs(rec.Weight-0.75) > 1e-9 {
				t.Errorf("Go Language weight = %v, want 0.75", rec.Weight)
			}
		case rec.Specialization == "Rust developer":
			if rec.Weight != 1 {
				t.Errorf("Rust competency touched by a Go-scoped update: %v", rec.Weight)
			}
		}
	}
}

func TestImport_UpdateAllSpecializations(t *testing.T) {
	store, _ := seedCatalog(t)
	im := weights.NewImporter(store)

	report, err := im.Import(t.Context(), weights.ModeUpdate, "", rowsOf("Language", 1.0, "Concurrency", 1.0))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(report.Updated) != 2 {
		t.Fatalf("Updated = %v", report.Updated)
	}

	list, _ := im.List(t.Context(), "Rust developer")
	if len(list) != 1 || list[0].Weight != 0.5 {
		t.Errorf("Rust Language = %+v, want weight 0.5", list)
	}
}

func TestImport_UnknownMode(t *testing.T) {
	store, _ := seedCatalog(t)
	if _, err := weights.NewImporter(store).Import(t.Context(), "merge", "Go developer", nil); err == nil {
		t.Fatal("Import() should reject an unknown mode")
	}
}
