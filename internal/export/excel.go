package export

import (
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize"
)

// WriteExcel renders h as a workbook with a Profile sheet followed by one
// sheet per section.
func WriteExcel(w io.Writer, h History) error {
	file := excelize.NewFile()

	profile := "Profile"
	index := file.NewSheet(profile)
	file.DeleteSheet("Sheet1")
	file.SetCellValue(profile, "A1", "Field")
	file.SetCellValue(profile, "B1", "Value")
	for i, kv := range h.profile() {
		file.SetCellValue(profile, fmt.Sprintf("A%d", i+2), kv[0])
		file.SetCellValue(profile, fmt.Sprintf("B%d", i+2), kv[1])
	}
	file.SetColWidth(profile, "A", "A", 20)
	file.SetColWidth(profile, "B", "B", 50)

	for _, s := range h.sections() {
		file.NewSheet(s.title)
		appendRow(file, s.title, 1, s.headers)
		for i, row := range s.rows {
			appendRow(file, s.title, i+2, row)
		}
	}

	file.SetActiveSheet(index)
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func appendRow(file *excelize.File, sheet string, row int, values []string) {
	for col, v := range values {
		file.SetCellValue(sheet, fmt.Sprintf("%s%d", columnName(col), row), v)
	}
}

// columnName maps 0 to "A", 25 to "Z", 26 to "AA".
func columnName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}
