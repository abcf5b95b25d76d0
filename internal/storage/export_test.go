// ABOUTME: Tests for workout history export.
// ABOUTME: Checks CSV column order, JSON shape, window cutoff and the XLSX workbook.
package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/gymtracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// seedHistory writes one Push Day session with two bench sets.
func seedHistory(t *testing.T, db *DB, started time.Time) *models.WorkoutSession {
	t.Helper()

	ex := newExercise("Bench Press")
	mustPut(t, db, Exercises, ex)
	tmpl := newTemplate("u", "Push Day")
	mustPut(t, db, Templates, tmpl)

	s := &models.WorkoutSession{
		ID: uuid.NewString(), UserID: "u", TemplateID: &tmpl.ID, WeekType: models.WeekNormal,
		StartedAt: started, Notes: strp("felt strong"), SyncStatus: models.StatusSynced,
	}
	mustPut(t, db, Sessions, s)

	first := models.NewWorkoutSet(s.ID, ex.ID, models.SetWorking, 1, 8, 80)
	first.CreatedAt = started.Add(time.Minute)
	second := models.NewWorkoutSet(s.ID, ex.ID, models.SetWorking, 2, 6, 82.5).WithRPE(9)
	second.CreatedAt = started.Add(2 * time.Minute)
	mustPut(t, db, Sets, first)
	mustPut(t, db, Sets, second)
	return s
}

func TestExportCSV(t *testing.T) {
	db := setupTestDB(t)
	seedHistory(t, db, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))

	history, err := db.History(context.Background(), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, history))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus two data rows")
	assert.Equal(t, CSVHeader, records[0])
	assert.Equal(t, []string{"2024-03-15", "Push Day", "normal", "Bench Press", "working", "1", "80", "8", ""}, records[1])
	assert.Equal(t, []string{"2024-03-15", "Push Day", "normal", "Bench Press", "working", "2", "82.5", "6", "9"}, records[2])
}

func TestExportJSONShape(t *testing.T) {
	db := setupTestDB(t)
	seedHistory(t, db, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))

	history, err := db.History(context.Background(), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, history))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "2024-03-15", decoded[0]["date"])
	assert.Equal(t, "Push Day", decoded[0]["template"])
	assert.Equal(t, "felt strong", decoded[0]["notes"])
	sets := decoded[0]["sets"].([]any)
	require.Len(t, sets, 2)
	assert.Nil(t, sets[0].(map[string]any)["rpe"])
	assert.Equal(t, 82.5, sets[1].(map[string]any)["weight"])
}

func TestExportWindow(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	seedHistory(t, db, now.AddDate(0, 0, -60))
	recent := seedHistory(t, db, now.AddDate(0, 0, -3))

	all, err := db.History(context.Background(), ExportCutoff(now, 0))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	lastFour, err := db.History(context.Background(), ExportCutoff(now, 4))
	require.NoError(t, err)
	require.Len(t, lastFour, 1)
	assert.Equal(t, formatTime(recent.StartedAt)[:10], lastFour[0].Date)
}

func TestExportYAMLAndXLSX(t *testing.T) {
	db := setupTestDB(t)
	seedHistory(t, db, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))

	history, err := db.History(context.Background(), nil)
	require.NoError(t, err)

	var yamlBuf bytes.Buffer
	require.NoError(t, WriteYAML(&yamlBuf, history))
	var decoded []ExportedSession
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &decoded))
	assert.Equal(t, history, decoded)

	var xlsxBuf bytes.Buffer
	require.NoError(t, WriteXLSX(&xlsxBuf, history))
	f, err := excelize.OpenReader(&xlsxBuf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sets")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, "82.5", rows[2][6])

	summary, err := f.GetRows("Sessions")
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "1135", summary[1][4], "volume is 80*8 + 82.5*6")
}
