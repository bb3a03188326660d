package backfill

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var problemHeader = []string{
	"wallet_id",
	"customer_id",
	"customer_name",
	"organization_id",
	"organization_name",
	"created_at",
	"issues",
}

var errorHeader = []string{"customer_id", "error"}

// WriteReport exports problematic wallets to path and, when any unit of work
// failed, customer errors to a sibling file.
func WriteReport(path string, report *Report) error {
	if err := writeProblems(path, report.Problems); err != nil {
		return err
	}
	if len(report.Errors) == 0 {
		return nil
	}
	return writeErrors(errorPath(path), report.Errors)
}

func writeProblems(path string, problems []ProblemWallet) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(problemHeader); err != nil {
		return err
	}
	for _, problem := range problems {
		record := []string{
			problem.WalletID,
			problem.CustomerID,
			problem.CustomerName,
			problem.OrgID,
			problem.OrgName,
			problem.CreatedAt.UTC().Format(time.RFC3339),
			strings.Join(problem.Issues, "; "),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeErrors(path string, errors []CustomerError) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(errorHeader); err != nil {
		return err
	}
	for _, failure := range errors {
		if err := writer.Write([]string{failure.CustomerID, failure.Err}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func errorPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_errors" + ext
}
