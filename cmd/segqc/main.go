package main

import (
	"bytes"
	"compress/gzip"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"segqc/internal/models"
	"segqc/pkg/cache"
	"segqc/pkg/catalog"
	"segqc/pkg/config"
	"segqc/pkg/nifti"
	"segqc/pkg/preview"
	"segqc/pkg/report"
	"segqc/pkg/validation"
	"segqc/pkg/volume"
)

func main() {
	// Parse command line arguments
	input := flag.String("input", "", "Segmentation volume (.nii/.nii.gz) or directory of volumes")
	refPath := flag.String("ref", "", "Reference scan volume for dimension/affine cross-checks")
	configPath := flag.String("config", "config.yaml", "Application configuration file (YAML)")
	patientID := flag.String("patient", "unknown", "Patient identifier for reports")
	reportDir := flag.String("report-dir", "", "Report output directory (overrides config)")
	saveCleaned := flag.Bool("save-cleaned", true, "Write cleaned volumes next to their inputs")
	savePreviews := flag.Bool("previews", false, "Save axial slice previews of cleaned volumes")
	minSizeMB := flag.Float64("min-size-mb", 0, "Skip input files smaller than this many MB")
	useCache := flag.Bool("cache", false, "Cache input volume bytes locally (for slow network mounts)")
	flag.Parse()

	// Validate inputs
	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if *reportDir != "" {
		cfg.Report.OutputDir = *reportDir
	}
	vcfg := cfg.ValidationConfig()

	runID := uuid.NewString()

	fmt.Println("================================")
	fmt.Println("SEGMENTATION VALIDATION & CLEANUP")
	fmt.Println("================================")
	fmt.Printf("Run ID: %s\n\n", runID)

	cat := loadCatalog(cfg, logger)

	var byteCache *cache.Cache
	if *useCache {
		byteCache, err = cache.New(cfg.Cache.Dir, cache.Options{
			MaxBytes:   int64(cfg.Cache.MaxSizeMB) << 20,
			DefaultTTL: time.Duration(cfg.Cache.TTLHours) * time.Hour,
		})
		if err != nil {
			logger.Fatal("Failed to open volume cache", zap.String("dir", cfg.Cache.Dir), zap.Error(err))
		}
	}

	var ref *volume.Volume
	if *refPath != "" {
		ref, err = loadVolume(*refPath, byteCache)
		if err != nil {
			logger.Fatal("Failed to load reference volume", zap.String("path", *refPath), zap.Error(err))
		}
	}

	scans, err := collectScans(*input, *patientID, runID, *minSizeMB)
	if err != nil {
		logger.Fatal("Failed to collect input volumes", zap.Error(err))
	}
	if len(scans) == 0 {
		logger.Fatal("No segmentation volumes found", zap.String("input", *input))
	}

	if err := os.MkdirAll(cfg.Report.OutputDir, 0755); err != nil {
		logger.Fatal("Failed to create report directory", zap.Error(err))
	}

	startTime := time.Now()
	failed := 0
	for _, scan := range scans {
		res, err := processScan(scan, ref, cat, byteCache, vcfg, cfg.Report.OutputDir, *saveCleaned, *savePreviews)
		if err != nil {
			logger.Error("Scan processing failed",
				zap.String("scan", scan.Name),
				zap.Error(err))
			failed++
			continue
		}
		logger.Info("Scan validated",
			zap.String("run_id", scan.RunID),
			zap.String("patient", scan.PatientID),
			zap.String("scan", scan.Name),
			zap.Bool("valid", res.Valid),
			zap.Int("warnings", res.Warnings),
			zap.Int("errors", res.Errors),
			zap.Bool("cleaned", res.Cleaned),
			zap.String("report", res.ReportPath))
		if !res.Valid {
			failed++
		}
	}

	fmt.Printf("\nProcessed %d volume(s) in %.2f seconds\n", len(scans), time.Since(startTime).Seconds())
	fmt.Printf("Reports written to: %s\n", cfg.Report.OutputDir)
	if failed > 0 {
		fmt.Printf("%d volume(s) failed validation\n", failed)
		os.Exit(1)
	}
}

// loadCatalog loads the label catalog from the configured colors file. When
// the colors file is missing the fallback path is explicit: synthesize
// deterministic colors from the label dictionary, or run with an empty
// catalog when that is missing too.
func loadCatalog(cfg *config.Config, logger *zap.Logger) *catalog.Catalog {
	colorsPath := filepath.Join(cfg.Labels.ConfDir, cfg.Labels.ColorsFile)
	cat, found, err := catalog.LoadFile(colorsPath)
	if err != nil {
		logger.Fatal("Failed to load label colors", zap.String("path", colorsPath), zap.Error(err))
	}
	if found {
		return cat
	}

	dictPath := filepath.Join(cfg.Labels.ConfDir, cfg.Labels.DictFile)
	names, found, err := catalog.LoadNames(dictPath)
	if err != nil {
		logger.Fatal("Failed to load label dictionary", zap.String("path", dictPath), zap.Error(err))
	}
	if found {
		logger.Warn("Label colors file missing, using generated fallback colors",
			zap.String("colors", colorsPath))
		cat, err = catalog.GenerateFallback(names)
		if err != nil {
			logger.Fatal("Failed to generate fallback catalog", zap.Error(err))
		}
		return cat
	}

	logger.Warn("No label configuration found, all labels will be reported as unknown",
		zap.String("conf_dir", cfg.Labels.ConfDir))
	cat, _ = catalog.New(nil)
	return cat
}

// collectScans resolves the input argument to the list of volumes to
// process, skipping files below the minimum size gate and previously
// written cleaned outputs.
func collectScans(input, patientID, runID string, minSizeMB float64) ([]models.Scan, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}

	var paths []string
	if info.IsDir() {
		entries, err := os.ReadDir(input)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !isNifti(e.Name()) {
				continue
			}
			if strings.Contains(e.Name(), "_cleaned") {
				continue
			}
			paths = append(paths, filepath.Join(input, e.Name()))
		}
	} else {
		paths = append(paths, input)
	}

	scans := make([]models.Scan, 0, len(paths))
	for _, p := range paths {
		if minSizeMB > 0 {
			fi, err := os.Stat(p)
			if err != nil {
				return nil, err
			}
			if float64(fi.Size())/(1024*1024) < minSizeMB {
				continue
			}
		}
		scans = append(scans, models.Scan{
			PatientID: patientID,
			Name:      scanName(p),
			Path:      p,
			RunID:     runID,
		})
	}
	return scans, nil
}

func isNifti(name string) bool {
	return strings.HasSuffix(name, ".nii") || strings.HasSuffix(name, ".nii.gz")
}

func scanName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".nii")
	return name
}

// loadVolume reads a NIfTI volume, optionally through the byte cache so
// that repeated runs against slow network mounts skip the transfer.
func loadVolume(path string, byteCache *cache.Cache) (*volume.Volume, error) {
	if byteCache == nil {
		return nifti.Load(path)
	}

	data, ok := byteCache.Get(path)
	if !ok {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := byteCache.Put(path, data); err != nil {
			return nil, fmt.Errorf("failed to cache volume: %w", err)
		}
	}

	var r io.Reader = bytes.NewReader(data)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return nifti.Decode(r)
}

func processScan(scan models.Scan, ref *volume.Volume, cat *catalog.Catalog, byteCache *cache.Cache,
	vcfg validation.Config, reportDir string, saveCleaned, savePreviews bool) (*models.BatchResult, error) {

	seg, err := loadVolume(scan.Path, byteCache)
	if err != nil {
		return nil, fmt.Errorf("failed to load segmentation: %w", err)
	}

	res := validation.ValidateAndClean(seg, ref, cat, vcfg)

	meta := report.Meta{
		PatientID:   scan.PatientID,
		ScanName:    scan.Name,
		InputFile:   filepath.Base(scan.Path),
		RunID:       scan.RunID,
		GeneratedAt: time.Now(),
	}
	reportPath := filepath.Join(reportDir, scan.Name+"_validation_report.md")
	if err := os.WriteFile(reportPath, []byte(report.Generate(res, cat, meta, vcfg)), 0644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	out := &models.BatchResult{
		Scan:       scan,
		Valid:      res.Valid,
		Warnings:   len(res.Warnings),
		Errors:     len(res.Errors),
		Cleaned:    res.Cleaned,
		ReportPath: reportPath,
	}

	if res.Cleaned && saveCleaned {
		cleanedPath := cleanedVolumePath(scan.Path)
		if err := nifti.Save(cleanedPath, res.CleanedVolume); err != nil {
			return nil, fmt.Errorf("failed to save cleaned volume: %w", err)
		}
		out.CleanedPath = cleanedPath

		if savePreviews {
			previewer := preview.NewPreviewer(res.CleanedVolume, cat)
			previewDir := filepath.Join(reportDir, scan.Name+"_previews")
			if err := previewer.SaveSliceSequence("z", previewDir); err != nil {
				return nil, fmt.Errorf("failed to save previews: %w", err)
			}
		}
	}
	return out, nil
}

// cleanedVolumePath inserts a _cleaned marker before the NIfTI extension.
func cleanedVolumePath(path string) string {
	switch {
	case strings.HasSuffix(path, ".nii.gz"):
		return strings.TrimSuffix(path, ".nii.gz") + "_cleaned.nii.gz"
	case strings.HasSuffix(path, ".nii"):
		return strings.TrimSuffix(path, ".nii") + "_cleaned.nii"
	default:
		return path + "_cleaned"
	}
}
