package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adonhq/assessment-backend/internal/config"
	"github.com/adonhq/assessment-backend/internal/database"
	"github.com/adonhq/assessment-backend/internal/logger"
	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/adonhq/assessment-backend/internal/repository"
	"github.com/adonhq/assessment-backend/internal/service"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "seed-exams",
		Short:        "Provision examination records from a roster or by generating identifiers",
		SilenceUsage: true,
		RunE:         run,
	}
	f := cmd.Flags()
	f.StringP("file", "f", "", "Roster file (.csv, .xlsx or .xls) with examination_id[,description] rows")
	f.IntP("generate", "n", 0, "Generate this many random identifiers instead of reading a roster")
	f.String("prefix", "EXAM-", "Prefix for generated identifiers")
	f.String("description", "", "Description applied to generated records")
	cmd.MarkFlagsMutuallyExclusive("file", "generate")
	cmd.MarkFlagsOneRequired("file", "generate")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var (
		rows []model.CreateExaminationRequest
		err  error
	)
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		rows, err = readRoster(path)
	} else {
		n, _ := cmd.Flags().GetInt("generate")
		prefix, _ := cmd.Flags().GetString("prefix")
		desc, _ := cmd.Flags().GetString("description")
		rows, err = generate(n, prefix, desc)
	}
	if err != nil {
		return err
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	exams := service.NewExaminationService(
		repository.NewExaminationRepository(pool),
		repository.NewResultRepository(pool),
	)

	fmt.Printf("=== Seeding %d Examination Records ===\n", len(rows))

	created, skipped := 0, 0
	for i := range rows {
		req := &rows[i]
		if !model.IsValidExaminationID(req.ExaminationID) {
			fmt.Printf("Skipping malformed identifier %q\n", req.ExaminationID)
			skipped++
			continue
		}
		if _, err := exams.Create(ctx, req); err != nil {
			if errors.Is(err, service.ErrDuplicateExamination) {
				skipped++
				continue
			}
			return fmt.Errorf("create %s: %w", req.ExaminationID, err)
		}
		created++
		fmt.Println(req.ExaminationID)
	}

	fmt.Printf("\nSeed completed! Created %d, skipped %d.\n", created, skipped)
	return nil
}

func generate(n int, prefix, description string) ([]model.CreateExaminationRequest, error) {
	if n <= 0 {
		return nil, errors.New("--generate must be positive")
	}
	rows := make([]model.CreateExaminationRequest, 0, n)
	for range n {
		suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
		rows = append(rows, model.CreateExaminationRequest{
			ExaminationID: prefix + suffix,
			Description:   description,
		})
	}
	return rows, nil
}

// readRoster loads identifier rows. A header row whose first cell is
// "examination_id" is skipped.
func readRoster(path string) ([]model.CreateExaminationRequest, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		records, err = readWorkbook(path)
	default:
		records, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}

	rows := make([]model.CreateExaminationRequest, 0, len(records))
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		id := strings.TrimSpace(rec[0])
		if id == "" || (i == 0 && strings.EqualFold(id, "examination_id")) {
			continue
		}
		req := model.CreateExaminationRequest{ExaminationID: id}
		if len(rec) > 1 {
			req.Description = strings.TrimSpace(rec[1])
		}
		rows = append(rows, req)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read roster: %w", err)
		}
		records = append(records, rec)
	}
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("roster workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read roster sheet: %w", err)
	}
	return rows, nil
}
