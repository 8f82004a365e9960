// Package report renders progress data as spreadsheets.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/dsaquest/internal/progress"
)

// LeaderboardSheet is the worksheet name used for leaderboard exports.
const LeaderboardSheet = "Leaderboard"

// XLSXContentType is the MIME type of an .xlsx workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var leaderboardHeader = []any{"Rank", "Name", "User ID", "XP", "Level"}

// LeaderboardWorkbook builds a one-sheet workbook with a header row and one
// row per entry. The caller must Close the returned file.
func LeaderboardWorkbook(entries []progress.LeaderboardEntry) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", LeaderboardSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(LeaderboardSheet, "A1", &leaderboardHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(LeaderboardSheet, "A1", "E1", bold); err != nil {
		f.Close()
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []any{e.Rank, e.Name, e.UserID, e.Score, e.Level}
		if err := f.SetSheetRow(LeaderboardSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(LeaderboardSheet, "B", "C", 28); err != nil {
		f.Close()
		return nil, fmt.Errorf("set column width: %w", err)
	}
	return f, nil
}

// WriteLeaderboard writes entries to w as an .xlsx workbook.
func WriteLeaderboard(w io.Writer, entries []progress.LeaderboardEntry) error {
	f, err := LeaderboardWorkbook(entries)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
