package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/pipetakeoff/constants"
	"github.com/joseph-ayodele/pipetakeoff/internal/common"
	"github.com/joseph-ayodele/pipetakeoff/internal/entity"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatExcel   Format = "excel"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts the route names plus "xlsx" as an alias for excel.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	case "parquet":
		return FormatParquet, nil
	}
	return "", common.InvalidInputErrorf("unsupported export format %q", s)
}

// Document is a complete export body with its transport metadata.
type Document struct {
	Body        []byte
	ContentType string
	Extension   string
}

// FileName is the download name for a document generated at t.
func (d Document) FileName(t time.Time) string {
	return "takeoff-" + t.Format("20060102-150405") + "." + d.Extension
}

// Service is a small façade over the encoders that validates input and logs results.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

func (s *Service) Export(ctx context.Context, format Format, records []entity.MaterialRecord) (Document, error) {
	start := time.Now()
	log := common.LoggerFrom(ctx, s.logger)

	if len(records) == 0 {
		return Document{}, common.InvalidInputError("no materials to export")
	}
	for i, rec := range records {
		if !entity.QuantityInRange(rec.Quantity) {
			return Document{}, common.InvalidInputErrorf("material %d: quantity is out of range", i+1)
		}
	}

	var (
		doc Document
		err error
	)
	switch format {
	case FormatCSV:
		doc = Document{ContentType: constants.CSVMimeType, Extension: "csv"}
		doc.Body, err = CSV(records)
	case FormatExcel:
		doc = Document{ContentType: constants.XLSXMimeType, Extension: "xlsx"}
		doc.Body, err = XLSX(records)
	case FormatParquet:
		doc = Document{ContentType: constants.ParquetMimeType, Extension: "parquet"}
		doc.Body, err = Parquet(records)
	default:
		return Document{}, common.InvalidInputErrorf("unsupported export format %q", format)
	}
	if err != nil {
		log.Error("export.failed", "format", format, "rows", len(records), "error", err)
		return Document{}, fmt.Errorf("export %s: %w", format, err)
	}

	log.Info("export."+doc.Extension+".ok",
		"rows", len(records),
		"bytes", len(doc.Body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}
