package services

import (
	"testing"
	"time"

	apperrors "carsales-dashboard/internal/errors"
	"carsales-dashboard/internal/models"
)

func validInput() Input {
	return Input{
		Brand:     "Ford",
		Year:      2022,
		Start:     "2022-01-15",
		End:       "2023-11-11",
		Dimension: string(models.DimensionBodyStyle),
	}
}

func TestNewFilterParams_Valid(t *testing.T) {
	ds := createTestDataset()

	in := validInput()
	in.Start = "2022-02-01T00:00:00"
	in.Toggle = 3

	p, err := NewFilterParams(ds, in)
	if err != nil {
		t.Fatalf("NewFilterParams() error = %v", err)
	}
	if !p.Interval.Start.Equal(time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", p.Interval.Start)
	}
	if p.Toggle != 3 || p.Dimension != models.DimensionBodyStyle {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestNewFilterParams_Invalid(t *testing.T) {
	ds := createTestDataset()

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"unknown brand", func(in *Input) { in.Brand = "BMW" }},
		{"year not in dataset", func(in *Input) { in.Year = 2019 }},
		{"start after end", func(in *Input) { in.Start, in.End = "2023-01-01", "2022-06-01" }},
		{"start before dataset", func(in *Input) { in.Start = "2021-12-31" }},
		{"end after dataset", func(in *Input) { in.End = "2024-01-01" }},
		{"unparseable date", func(in *Input) { in.End = "11/11/2023" }},
		{"unknown dimension", func(in *Input) { in.Dimension = "Color" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := NewFilterParams(ds, in)
			if err == nil {
				t.Fatal("expected error")
			}
			if !apperrors.HasCode(err, apperrors.CodeInvalidFilter) {
				t.Errorf("expected INVALID_FILTER, got %v", err)
			}
		})
	}
}

func TestDefaultInput(t *testing.T) {
	ds := createTestDataset()

	in := DefaultInput(ds)
	want := Input{
		Brand:     "Ford",
		Year:      2022,
		Start:     "2022-01-15",
		End:       "2023-11-11",
		Dimension: "Body Style",
	}
	if in != want {
		t.Errorf("DefaultInput() = %+v, want %+v", in, want)
	}

	if _, err := NewFilterParams(ds, in); err != nil {
		t.Errorf("default input should validate: %v", err)
	}
}
