package dataset

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carsales-dashboard/internal/config"
	apperrors "carsales-dashboard/internal/errors"
	"carsales-dashboard/internal/models"
)

const sampleCSV = `Car_id, Date,Customer Name,Gender,Annual Income,Dealer_Name,Company,Model,Engine,Transmission,Color,Price ($),Dealer_No ,Body Style,Phone,Dealer_Region
C_CND_000001,1/2/2022,Geraldine,Male,13500,Buddy Storbeck's Diesel Service Inc,Ford,Expedition,Double Overhead Camshaft,Auto,Black,26000,06457-3834,SUV,8264678,Middletown
C_CND_000002,01/15/2022,Gia,Male,1480000,C & M Motors Inc,Audi,A4,DoubleÂ Overhead Camshaft,Auto,Black,19000,60504-7114,SUV,6848189,Aurora
C_CND_000003,03/20/2023,Gianna,Female,N/A,Capitol KIA,Ford,Explorer,Overhead Camshaft,Manual,Red,31500,38701-8047,Passenger,7298798,Greenville
C_CND_000004,not-a-date,Giselle,Male,420000,Chrysler of Tri-Cities,Ford,Focus,Overhead Camshaft,Manual,Pale White,14000,99301-3882,Sedan,6257557,Pasco
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse_ValidData(t *testing.T) {
	ds, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if ds.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", ds.Len())
	}
	if ds.Rejected() != 1 {
		t.Errorf("expected 1 rejected row, got %d", ds.Rejected())
	}

	first := ds.Records()[0]
	if first.Company != "Ford" || first.Model != "Expedition" || first.BodyStyle != "SUV" || first.Gender != "Male" {
		t.Errorf("unexpected first record %+v", first)
	}
	if first.Year != 2022 || first.Month != models.January {
		t.Errorf("derived fields = %d/%v, want 2022/January", first.Year, first.Month)
	}

	third := ds.Records()[2]
	if third.AnnualIncome != "N/A" {
		t.Errorf("malformed income should be kept raw, got %q", third.AnnualIncome)
	}
	if third.Month != models.March {
		t.Errorf("month = %v, want March", third.Month)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty source", ""},
		{"missing price column", "Company,Date,Model,Annual Income,Body Style,Gender\nFord,01/02/2022,Focus,1000,SUV,Male\n"},
		{"header only", "Company,Date,Model,Annual Income,Price ($),Body Style,Gender\n"},
		{"no parseable dates", "Company,Date,Model,Annual Income,Price ($),Body Style,Gender\nFord,2022-01-02,Focus,1000,2000,SUV,Male\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.csv))
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperrors.HasCode(err, apperrors.CodeDataLoad) {
				t.Errorf("expected DATA_LOAD_ERROR, got %v", err)
			}
		})
	}
}

func TestParse_MissingColumnsNamed(t *testing.T) {
	_, err := Parse(strings.NewReader("Company,Date\nFord,01/02/2022\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, col := range []string{ColModel, ColIncome, ColPrice, ColBodyStyle, ColGender} {
		if !strings.Contains(err.Error(), col) {
			t.Errorf("error %q should name missing column %q", err, col)
		}
	}
}

func TestLoad_UnreadableSource(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	if !apperrors.HasCode(err, apperrors.CodeDataLoad) {
		t.Errorf("expected DATA_LOAD_ERROR, got %v", err)
	}
}

func TestLoader_Cache(t *testing.T) {
	path := writeCSV(t, sampleCSV)
	cacheDir := filepath.Join(t.TempDir(), "cache")
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	loader := NewLoader(config.DatabaseConfig{CacheDir: cacheDir, CacheEnabled: true}, logger)

	// Make the source strictly older than the cache written below.
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	first, err := loader.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("first Load() error = %v", err)
	}

	entries, err := os.ReadDir(cacheDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one cache file, got %v (err %v)", entries, err)
	}

	// An unparseable source only loads if the cache is used.
	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	second, err := loader.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("cached Load() error = %v", err)
	}
	if second.Len() != first.Len() || second.Rejected() != first.Rejected() {
		t.Errorf("cached dataset differs: %d/%d vs %d/%d", second.Len(), second.Rejected(), first.Len(), first.Rejected())
	}
}

func TestDataset_Accessors(t *testing.T) {
	ds := New([]models.Sale{
		{Company: "Ford", Date: time.Date(2023, 5, 4, 15, 30, 0, 0, time.UTC)},
		{Company: "Audi", Date: time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC)},
		{Company: "Ford", Date: time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)},
	})

	if got := ds.Brands(); len(got) != 2 || got[0] != "Ford" || got[1] != "Audi" {
		t.Errorf("Brands() = %v, want first-seen order [Ford Audi]", got)
	}
	if got := ds.Years(); len(got) != 2 || got[0] != 2022 || got[1] != 2023 {
		t.Errorf("Years() = %v, want [2022 2023]", got)
	}

	minDate, maxDate := ds.Bounds()
	if !minDate.Equal(time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("min = %v", minDate)
	}
	if !maxDate.Equal(time.Date(2023, 5, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("max = %v, want truncated to the calendar date", maxDate)
	}

	if !ds.HasBrand("Audi") || ds.HasBrand("BMW") {
		t.Error("HasBrand() mismatch")
	}
	if !ds.HasYear(2023) || ds.HasYear(2021) {
		t.Error("HasYear() mismatch")
	}
	if got := ds.ComparisonYears(); got != [2]int{2022, 2023} {
		t.Errorf("ComparisonYears() = %v", got)
	}

	// Brands must return a copy.
	brands := ds.Brands()
	brands[0] = "mutated"
	if ds.Brands()[0] != "Ford" {
		t.Error("Brands() exposed internal state")
	}
}

func TestDataset_ComparisonYearsSingleYear(t *testing.T) {
	ds := New([]models.Sale{{Company: "Ford", Date: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)}})
	if got := ds.ComparisonYears(); got != [2]int{2022, 2023} {
		t.Errorf("ComparisonYears() = %v, want [2022 2023]", got)
	}
}
