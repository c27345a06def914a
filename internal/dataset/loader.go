package dataset

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"carsales-dashboard/internal/config"
	apperrors "carsales-dashboard/internal/errors"
	"carsales-dashboard/internal/models"
)

const (
	cacheVersion = "v1"
	checkEvery   = 10000
)

// Source column names. Header cells are trimmed before matching.
const (
	ColCompany   = "Company"
	ColDate      = "Date"
	ColModel     = "Model"
	ColIncome    = "Annual Income"
	ColPrice     = "Price ($)"
	ColBodyStyle = "Body Style"
	ColGender    = "Gender"
)

var requiredColumns = []string{ColCompany, ColDate, ColModel, ColIncome, ColPrice, ColBodyStyle, ColGender}

var dateLayouts = []string{"01/02/2006", "1/2/2006"}

type cachedRecords struct {
	Records  []models.Sale
	Rejected int
	CachedAt time.Time
}

// Loader reads the sales CSV, optionally reusing a gob cache of the parsed
// records while the source file is older than the cache.
type Loader struct {
	cacheDir string
	useCache bool
	logger   *slog.Logger
}

func NewLoader(cfg config.DatabaseConfig, logger *slog.Logger) *Loader {
	return &Loader{
		cacheDir: cfg.CacheDir,
		useCache: cfg.CacheEnabled,
		logger:   logger,
	}
}

// Load reads path without a cache.
func Load(ctx context.Context, path string) (*Dataset, error) {
	return NewLoader(config.DatabaseConfig{}, slog.Default()).Load(ctx, path)
}

func (l *Loader) Load(ctx context.Context, path string) (*Dataset, error) {
	if l.useCache {
		if cached, err := l.loadFromCache(path); err == nil {
			info, err := os.Stat(path)
			if err == nil && info.ModTime().Before(cached.CachedAt) {
				ds := New(cached.Records)
				ds.rejected = cached.Rejected
				l.logger.Info("loaded dataset from cache", "records", ds.Len())
				return ds, nil
			}
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.DataLoadWrap(err, "open dataset source")
	}
	defer file.Close()

	start := time.Now()
	ds, err := parse(ctx, file)
	if err != nil {
		return nil, err
	}

	if ds.rejected > 0 {
		l.logger.Warn("skipped rows with unparseable dates", "rows", ds.rejected)
	}
	l.logger.Info("dataset parsed",
		"filename", path,
		"records", ds.Len(),
		"brands", len(ds.brands),
		"duration", time.Since(start))

	if l.useCache {
		if err := l.saveToCache(path, ds); err != nil {
			l.logger.Warn("failed to save cache", "error", err)
		}
	}

	return ds, nil
}

// Parse reads CSV data from r.
func Parse(r io.Reader) (*Dataset, error) {
	return parse(context.Background(), r)
}

func parse(ctx context.Context, r io.Reader) (*Dataset, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, apperrors.DataLoadWrap(df.Err, "read dataset source")
	}

	columns, err := resolveColumns(df.Names())
	if err != nil {
		return nil, err
	}

	col := func(name string) []string {
		return df.Col(columns[name]).Records()
	}
	company, dates, model := col(ColCompany), col(ColDate), col(ColModel)
	income, price := col(ColIncome), col(ColPrice)
	body, gender := col(ColBodyStyle), col(ColGender)

	records := make([]models.Sale, 0, df.Nrow())
	rejected := 0
	for i := 0; i < df.Nrow(); i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, apperrors.DataLoadWrap(err, "dataset load interrupted")
			}
		}

		date, ok := parseDate(dates[i])
		if !ok {
			rejected++
			continue
		}

		records = append(records, models.Sale{
			Company:      strings.TrimSpace(company[i]),
			Date:         date,
			Model:        strings.TrimSpace(model[i]),
			BodyStyle:    strings.TrimSpace(body[i]),
			Gender:       strings.TrimSpace(gender[i]),
			AnnualIncome: strings.TrimSpace(income[i]),
			Price:        strings.TrimSpace(price[i]),
		})
	}

	if len(records) == 0 {
		return nil, apperrors.DataLoad("dataset source has no valid records")
	}

	ds := New(records)
	ds.rejected = rejected
	return ds, nil
}

// resolveColumns maps each required column to its raw header name.
func resolveColumns(headers []string) (map[string]string, error) {
	byTrimmed := make(map[string]string, len(headers))
	for _, h := range headers {
		byTrimmed[strings.TrimSpace(h)] = h
	}

	columns := make(map[string]string, len(requiredColumns))
	var missing []string
	for _, name := range requiredColumns {
		raw, ok := byTrimmed[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		columns[name] = raw
	}

	if len(missing) > 0 {
		return nil, apperrors.DataLoad(fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}
	return columns, nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Cache management
func (l *Loader) getCacheFilename(csvPath string) string {
	name := strings.NewReplacer("/", "_", `\`, "_", ":", "_").Replace(csvPath)
	return filepath.Join(l.cacheDir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

func (l *Loader) saveToCache(csvPath string, ds *Dataset) error {
	if err := os.MkdirAll(l.cacheDir, 0755); err != nil {
		return err
	}

	file, err := os.Create(l.getCacheFilename(csvPath))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(cachedRecords{
		Records:  ds.records,
		Rejected: ds.rejected,
		CachedAt: time.Now(),
	})
}

func (l *Loader) loadFromCache(csvPath string) (*cachedRecords, error) {
	file, err := os.Open(l.getCacheFilename(csvPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var data cachedRecords
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
