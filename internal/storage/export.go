// ABOUTME: Workout history export built from local sessions and sets, no network involved.
// ABOUTME: Supports CSV, JSON, YAML and XLSX output scoped to all time or a trailing window.
package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/harperreed/gymtracker/internal/models"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// CSVHeader is the column order of CSV and XLSX exports.
var CSVHeader = []string{"date", "template", "week_type", "exercise", "set_type", "set_number", "weight", "reps", "rpe"}

// ExportedSession is one session in an export document.
type ExportedSession struct {
	Date     string        `json:"date" yaml:"date"`
	Template *string       `json:"template" yaml:"template"`
	WeekType string        `json:"week_type" yaml:"week_type"`
	Notes    *string       `json:"notes" yaml:"notes"`
	Sets     []ExportedSet `json:"sets" yaml:"sets"`
}

// ExportedSet is one set in an export document.
type ExportedSet struct {
	Exercise  string   `json:"exercise" yaml:"exercise"`
	SetType   string   `json:"set_type" yaml:"set_type"`
	SetNumber int      `json:"set_number" yaml:"set_number"`
	Weight    float64  `json:"weight" yaml:"weight"`
	Reps      int      `json:"reps" yaml:"reps"`
	RPE       *float64 `json:"rpe" yaml:"rpe"`
}

// ExportCutoff returns the earliest start time included when exporting the
// trailing weeks before now. Zero weeks means all time and returns nil.
func ExportCutoff(now time.Time, weeks int) *time.Time {
	if weeks <= 0 {
		return nil
	}
	cutoff := now.Add(-time.Duration(weeks) * 7 * 24 * time.Hour)
	return &cutoff
}

// History collects sessions started at or after since (all when nil), oldest
// first, with their sets and resolved template and exercise names.
func (d *DB) History(ctx context.Context, since *time.Time) ([]ExportedSession, error) {
	var out []ExportedSession
	err := d.View(ctx, func(tx *Tx) error {
		clauses := []Clause{OrderBy("started_at", false)}
		if since != nil {
			clauses = append(clauses, Gte("started_at", *since))
		}
		sessions, err := Collect(ctx, tx, Sessions, clauses...)
		if err != nil {
			return err
		}

		templateNames, err := names(ctx, tx, Templates, func(t *models.WorkoutTemplate) (string, string) { return t.ID, t.Name })
		if err != nil {
			return err
		}
		exerciseNames, err := names(ctx, tx, Exercises, func(e *models.Exercise) (string, string) { return e.ID, e.Name })
		if err != nil {
			return err
		}

		for _, s := range sessions {
			es := ExportedSession{
				Date:     formatTime(s.StartedAt)[:10],
				WeekType: string(s.WeekType),
				Notes:    s.Notes,
				Sets:     []ExportedSet{},
			}
			if s.TemplateID != nil {
				if name, ok := templateNames[*s.TemplateID]; ok {
					es.Template = &name
				}
			}

			sets, err := Collect(ctx, tx, Sets, Eq("session_id", s.ID), OrderBy("created_at", false), OrderBy("set_number", false))
			if err != nil {
				return err
			}
			for _, set := range sets {
				es.Sets = append(es.Sets, ExportedSet{
					Exercise:  exerciseNames[set.ExerciseID],
					SetType:   string(set.SetType),
					SetNumber: set.SetNumber,
					Weight:    set.Weight,
					Reps:      set.Reps,
					RPE:       set.RPE,
				})
			}
			out = append(out, es)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect history: %w", err)
	}
	return out, nil
}

func names[T any](ctx context.Context, q Querier, t *Table[T], kv func(*T) (string, string)) (map[string]string, error) {
	m := make(map[string]string)
	for v, err := range Query(ctx, q, t) {
		if err != nil {
			return nil, err
		}
		k, name := kv(v)
		m[k] = name
	}
	return m, nil
}

// csvRecords flattens sessions into one record per set in CSVHeader order.
func csvRecords(sessions []ExportedSession) [][]string {
	var records [][]string
	for _, s := range sessions {
		template := ""
		if s.Template != nil {
			template = *s.Template
		}
		for _, set := range s.Sets {
			rpe := ""
			if set.RPE != nil {
				rpe = formatNumber(*set.RPE)
			}
			records = append(records, []string{
				s.Date,
				template,
				s.WeekType,
				set.Exercise,
				set.SetType,
				strconv.Itoa(set.SetNumber),
				formatNumber(set.Weight),
				strconv.Itoa(set.Reps),
				rpe,
			})
		}
	}
	return records
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteCSV writes the header and one row per set.
func WriteCSV(w io.Writer, sessions []ExportedSession) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(csvRecords(sessions)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteJSON writes the session list as indented JSON.
func WriteJSON(w io.Writer, sessions []ExportedSession) error {
	if sessions == nil {
		sessions = []ExportedSession{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sessions)
}

// WriteYAML writes the session list as YAML.
func WriteYAML(w io.Writer, sessions []ExportedSession) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(sessions); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

const (
	sheetSets     = "Sets"
	sheetSessions = "Sessions"
)

// WriteXLSX writes a workbook with a Sets sheet (CSV layout) and a Sessions summary sheet.
func WriteXLSX(w io.Writer, sessions []ExportedSession) error {
	f := excelize.NewFile()
	defer f.Close()

	setsIndex, err := f.NewSheet(sheetSets)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetSessions); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(setsIndex)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#2E75B6"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSheetRow(f, sheetSets, 1, toAny(CSVHeader)); err != nil {
		return err
	}
	row := 2
	for _, s := range sessions {
		template := ""
		if s.Template != nil {
			template = *s.Template
		}
		for _, set := range s.Sets {
			var rpe any
			if set.RPE != nil {
				rpe = *set.RPE
			}
			values := []any{s.Date, template, s.WeekType, set.Exercise, set.SetType, set.SetNumber, set.Weight, set.Reps, rpe}
			if err := writeSheetRow(f, sheetSets, row, values); err != nil {
				return err
			}
			row++
		}
	}
	if err := f.SetCellStyle(sheetSets, "A1", "I1", header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	_ = f.SetColWidth(sheetSets, "A", "A", 12)
	_ = f.SetColWidth(sheetSets, "B", "D", 22)

	if err := writeSheetRow(f, sheetSessions, 1, []any{"date", "template", "week_type", "sets", "volume", "notes"}); err != nil {
		return err
	}
	for i, s := range sessions {
		var template, notes string
		if s.Template != nil {
			template = *s.Template
		}
		if s.Notes != nil {
			notes = *s.Notes
		}
		var volume float64
		for _, set := range s.Sets {
			if set.SetType == string(models.SetWorking) {
				volume += set.Weight * float64(set.Reps)
			}
		}
		if err := writeSheetRow(f, sheetSessions, i+2, []any{s.Date, template, s.WeekType, len(s.Sets), volume, notes}); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetSessions, "A1", "F1", header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheetRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
