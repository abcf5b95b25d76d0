// ABOUTME: Wire types for the REST API plus lenient timestamp and number decoding.
// ABOUTME: Conversions map server payloads onto local rows and local rows onto request bodies.
package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/harperreed/gymtracker/internal/models"
)

// Timestamp decodes RFC 3339 times as well as offset-less server times, which are taken as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Number accepts JSON numbers and decimal strings such as "82.50".
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("number: %w", err)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("number: %w", err)
	}
	*n = Number(f)
	return nil
}

func ts(t *Timestamp) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

func toTS(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	return &Timestamp{Time: *t}
}

// TokenPair is returned by login, register and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// UserDTO is the authenticated identity.
type UserDTO struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	PreferredUnit string    `json:"preferred_unit"`
	CreatedAt     Timestamp `json:"created_at"`
}

// Model maps the identity onto the local user row.
func (u UserDTO) Model() *models.User {
	return &models.User{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		PreferredUnit: models.Unit(u.PreferredUnit),
		CreatedAt:     u.CreatedAt.Time,
		SyncStatus:    models.StatusSynced,
	}
}

// UserUpdate changes profile fields; nil fields are left alone.
type UserUpdate struct {
	DisplayName   *string `json:"display_name,omitempty"`
	PreferredUnit *string `json:"preferred_unit,omitempty"`
}

// SubstitutionDTO is a legacy global substitute embedded in an exercise.
type SubstitutionDTO struct {
	ID                     string  `json:"id"`
	SubstituteExerciseID   string  `json:"substitute_exercise_id"`
	SubstituteExerciseName *string `json:"substitute_exercise_name"`
	Priority               int     `json:"priority"`
}

// ExerciseDTO is a catalog or custom exercise.
type ExerciseDTO struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	MuscleGroup   string            `json:"muscle_group"`
	Equipment     *string           `json:"equipment"`
	IsCustom      bool              `json:"is_custom"`
	YoutubeURL    *string           `json:"youtube_url"`
	Notes         *string           `json:"notes"`
	CreatedAt     Timestamp         `json:"created_at"`
	Substitutions []SubstitutionDTO `json:"substitutions"`
}

// Model maps the exercise onto a local row. Only custom exercises are owned by userID.
func (e ExerciseDTO) Model(userID string) *models.Exercise {
	ex := &models.Exercise{
		ID:          e.ID,
		Name:        e.Name,
		MuscleGroup: e.MuscleGroup,
		Equipment:   e.Equipment,
		IsCustom:    e.IsCustom,
		YoutubeURL:  e.YoutubeURL,
		Notes:       e.Notes,
		CreatedAt:   e.CreatedAt.Time,
		SyncStatus:  models.StatusSynced,
	}
	if e.IsCustom {
		owner := userID
		ex.UserID = &owner
	}
	return ex
}

// SubstitutionModels flattens the embedded substitutes into local rows.
func (e ExerciseDTO) SubstitutionModels() []*models.ExerciseSubstitution {
	out := make([]*models.ExerciseSubstitution, 0, len(e.Substitutions))
	for _, s := range e.Substitutions {
		out = append(out, &models.ExerciseSubstitution{
			ID:                   s.ID,
			ExerciseID:           e.ID,
			SubstituteExerciseID: s.SubstituteExerciseID,
			Priority:             s.Priority,
			SyncStatus:           models.StatusSynced,
		})
	}
	return out
}

// TemplateDTO is a template summary.
type TemplateDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt Timestamp `json:"created_at"`
}

// Model maps the template onto a local row owned by userID.
func (t TemplateDTO) Model(userID string) *models.WorkoutTemplate {
	return &models.WorkoutTemplate{
		ID:         t.ID,
		UserID:     userID,
		Name:       t.Name,
		CreatedAt:  t.CreatedAt.Time,
		SyncStatus: models.StatusSynced,
	}
}

// TemplateExerciseDTO is one prescription row on the wire.
type TemplateExerciseDTO struct {
	ID                 string  `json:"id,omitempty"`
	ExerciseID         string  `json:"exercise_id"`
	WeekType           string  `json:"week_type"`
	Order              int     `json:"order"`
	WorkingSets        int     `json:"working_sets"`
	MinReps            int     `json:"min_reps"`
	MaxReps            int     `json:"max_reps"`
	EarlySetRPEMin     Number  `json:"early_set_rpe_min"`
	EarlySetRPEMax     Number  `json:"early_set_rpe_max"`
	LastSetRPEMin      Number  `json:"last_set_rpe_min"`
	LastSetRPEMax      Number  `json:"last_set_rpe_max"`
	RestPeriod         string  `json:"rest_period"`
	IntensityTechnique *string `json:"intensity_technique"`
	WarmupSets         int     `json:"warmup_sets"`
	ParentExerciseID   *string `json:"parent_exercise_id,omitempty"`
}

// Model maps the row onto a local template exercise.
func (te TemplateExerciseDTO) Model(templateID string) *models.TemplateExercise {
	return &models.TemplateExercise{
		ID:         te.ID,
		TemplateID: templateID,
		ExerciseID: te.ExerciseID,
		WeekType:   models.WeekType(te.WeekType),
		Order:      te.Order,
		Prescription: models.Prescription{
			WorkingSets:        te.WorkingSets,
			MinReps:            te.MinReps,
			MaxReps:            te.MaxReps,
			EarlySetRPEMin:     float64(te.EarlySetRPEMin),
			EarlySetRPEMax:     float64(te.EarlySetRPEMax),
			LastSetRPEMin:      float64(te.LastSetRPEMin),
			LastSetRPEMax:      float64(te.LastSetRPEMax),
			RestPeriod:         te.RestPeriod,
			IntensityTechnique: te.IntensityTechnique,
			WarmupSets:         te.WarmupSets,
		},
		ParentExerciseID: te.ParentExerciseID,
		SyncStatus:       models.StatusSynced,
	}
}

// TemplateExerciseFrom maps a local row onto the wire.
func TemplateExerciseFrom(te *models.TemplateExercise) TemplateExerciseDTO {
	return TemplateExerciseDTO{
		ID:                 te.ID,
		ExerciseID:         te.ExerciseID,
		WeekType:           string(te.WeekType),
		Order:              te.Order,
		WorkingSets:        te.WorkingSets,
		MinReps:            te.MinReps,
		MaxReps:            te.MaxReps,
		EarlySetRPEMin:     Number(te.EarlySetRPEMin),
		EarlySetRPEMax:     Number(te.EarlySetRPEMax),
		LastSetRPEMin:      Number(te.LastSetRPEMin),
		LastSetRPEMax:      Number(te.LastSetRPEMax),
		RestPeriod:         te.RestPeriod,
		IntensityTechnique: te.IntensityTechnique,
		WarmupSets:         te.WarmupSets,
		ParentExerciseID:   te.ParentExerciseID,
	}
}

// TemplateDetailDTO is a template with every prescription row.
type TemplateDetailDTO struct {
	ID                string                `json:"id"`
	Name              string                `json:"name"`
	CreatedAt         Timestamp             `json:"created_at"`
	TemplateExercises []TemplateExerciseDTO `json:"template_exercises"`
}

// TemplateInput is the full-replace body for template create and update.
type TemplateInput struct {
	ID                string                `json:"id,omitempty"`
	Name              string                `json:"name"`
	TemplateExercises []TemplateExerciseDTO `json:"template_exercises"`
}

// ProgramDTO is a program summary.
type ProgramDTO struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	DeloadEveryNWeeks   int        `json:"deload_every_n_weeks"`
	IsActive            bool       `json:"is_active"`
	StartedAt           *Timestamp `json:"started_at"`
	CurrentRoutineIndex int        `json:"current_routine_index"`
	WeeksCompleted      int        `json:"weeks_completed"`
	LastWorkoutAt       *Timestamp `json:"last_workout_at"`
	CreatedAt           Timestamp  `json:"created_at"`
}

// Model maps the program onto a local row owned by userID.
func (p ProgramDTO) Model(userID string) *models.Program {
	return &models.Program{
		ID:                  p.ID,
		UserID:              userID,
		Name:                p.Name,
		DeloadEveryNWeeks:   p.DeloadEveryNWeeks,
		IsActive:            p.IsActive,
		StartedAt:           ts(p.StartedAt),
		CurrentRoutineIndex: p.CurrentRoutineIndex,
		WeeksCompleted:      p.WeeksCompleted,
		LastWorkoutAt:       ts(p.LastWorkoutAt),
		CreatedAt:           p.CreatedAt.Time,
		SyncStatus:          models.StatusSynced,
	}
}

// RoutineDTO is one program slot on the wire.
type RoutineDTO struct {
	ID         string `json:"id,omitempty"`
	TemplateID string `json:"template_id"`
	Order      int    `json:"order"`
}

// ProgramDetailDTO is a program with its routines.
type ProgramDetailDTO struct {
	ProgramDTO
	Routines []RoutineDTO `json:"routines"`
}

// RoutineModels maps the routines onto local rows.
func (p ProgramDetailDTO) RoutineModels() []*models.ProgramRoutine {
	out := make([]*models.ProgramRoutine, 0, len(p.Routines))
	for _, r := range p.Routines {
		out = append(out, &models.ProgramRoutine{
			ID:         r.ID,
			ProgramID:  p.ID,
			TemplateID: r.TemplateID,
			Order:      r.Order,
			SyncStatus: models.StatusSynced,
		})
	}
	return out
}

// ProgramInput is the full-replace body for program create and update.
type ProgramInput struct {
	ID                string       `json:"id,omitempty"`
	Name              string       `json:"name"`
	DeloadEveryNWeeks int          `json:"deload_every_n_weeks"`
	Routines          []RoutineDTO `json:"routines"`
}

// SessionDTO is a session summary.
type SessionDTO struct {
	ID         string     `json:"id"`
	TemplateID *string    `json:"template_id"`
	YearWeek   *string    `json:"year_week"`
	WeekType   string     `json:"week_type"`
	StartedAt  Timestamp  `json:"started_at"`
	FinishedAt *Timestamp `json:"finished_at"`
	Notes      *string    `json:"notes"`
	ProgramID  *string    `json:"program_id"`
}

// Model maps the session onto a local row owned by userID.
func (s SessionDTO) Model(userID string) *models.WorkoutSession {
	return &models.WorkoutSession{
		ID:         s.ID,
		UserID:     userID,
		TemplateID: s.TemplateID,
		YearWeek:   s.YearWeek,
		WeekType:   models.WeekType(s.WeekType),
		StartedAt:  s.StartedAt.Time,
		FinishedAt: ts(s.FinishedAt),
		Notes:      s.Notes,
		ProgramID:  s.ProgramID,
		SyncStatus: models.StatusSynced,
	}
}

// SetDTO is one logged set.
type SetDTO struct {
	ID         string    `json:"id"`
	ExerciseID string    `json:"exercise_id"`
	SetType    string    `json:"set_type"`
	SetNumber  int       `json:"set_number"`
	Reps       int       `json:"reps"`
	Weight     Number    `json:"weight"`
	RPE        *Number   `json:"rpe"`
	Notes      *string   `json:"notes"`
	CreatedAt  Timestamp `json:"created_at"`
}

// SessionDetailDTO is a session with its sets.
type SessionDetailDTO struct {
	SessionDTO
	Sets []SetDTO `json:"sets"`
}

// SetModels maps the sets onto local rows.
func (s SessionDetailDTO) SetModels() []*models.WorkoutSet {
	out := make([]*models.WorkoutSet, 0, len(s.Sets))
	for _, set := range s.Sets {
		var rpe *float64
		if set.RPE != nil {
			v := float64(*set.RPE)
			rpe = &v
		}
		out = append(out, &models.WorkoutSet{
			ID:         set.ID,
			SessionID:  s.ID,
			ExerciseID: set.ExerciseID,
			SetType:    models.SetType(set.SetType),
			SetNumber:  set.SetNumber,
			Reps:       set.Reps,
			Weight:     float64(set.Weight),
			RPE:        rpe,
			Notes:      set.Notes,
			CreatedAt:  set.CreatedAt.Time,
			SyncStatus: models.StatusSynced,
		})
	}
	return out
}

// ProgressDTO is one weekly max-weight record.
type ProgressDTO struct {
	ID         string    `json:"id"`
	ExerciseID string    `json:"exercise_id"`
	YearWeek   string    `json:"year_week"`
	MaxWeight  Number    `json:"max_weight"`
	CreatedAt  Timestamp `json:"created_at"`
}

// Model maps the record onto a local row owned by userID.
func (p ProgressDTO) Model(userID string) *models.ExerciseProgress {
	return &models.ExerciseProgress{
		ID:         p.ID,
		UserID:     userID,
		ExerciseID: p.ExerciseID,
		YearWeek:   p.YearWeek,
		MaxWeight:  float64(p.MaxWeight),
		CreatedAt:  p.CreatedAt.Time,
		SyncStatus: models.StatusSynced,
	}
}

// SyncSession is a pending session in a sync batch.
type SyncSession struct {
	ID         string     `json:"id"`
	TemplateID *string    `json:"template_id"`
	YearWeek   *string    `json:"year_week"`
	WeekType   string     `json:"week_type"`
	StartedAt  Timestamp  `json:"started_at"`
	FinishedAt *Timestamp `json:"finished_at"`
	Notes      *string    `json:"notes"`
	ProgramID  *string    `json:"program_id"`
}

// SyncSessionFrom maps a local session onto the batch payload.
func SyncSessionFrom(s *models.WorkoutSession) SyncSession {
	return SyncSession{
		ID:         s.ID,
		TemplateID: s.TemplateID,
		YearWeek:   s.YearWeek,
		WeekType:   string(s.WeekType),
		StartedAt:  Timestamp{Time: s.StartedAt},
		FinishedAt: toTS(s.FinishedAt),
		Notes:      s.Notes,
		ProgramID:  s.ProgramID,
	}
}

// SyncSet is a pending set in a sync batch.
type SyncSet struct {
	ID         string   `json:"id"`
	SessionID  string   `json:"session_id"`
	ExerciseID string   `json:"exercise_id"`
	SetType    string   `json:"set_type"`
	SetNumber  int      `json:"set_number"`
	Reps       int      `json:"reps"`
	Weight     float64  `json:"weight"`
	RPE        *float64 `json:"rpe"`
	Notes      *string  `json:"notes"`
}

// SyncSetFrom maps a local set onto the batch payload.
func SyncSetFrom(s *models.WorkoutSet) SyncSet {
	return SyncSet{
		ID:         s.ID,
		SessionID:  s.SessionID,
		ExerciseID: s.ExerciseID,
		SetType:    string(s.SetType),
		SetNumber:  s.SetNumber,
		Reps:       s.Reps,
		Weight:     s.Weight,
		RPE:        s.RPE,
		Notes:      s.Notes,
	}
}

// SyncRequest is the body of POST /sync.
type SyncRequest struct {
	Sessions []SyncSession `json:"sessions"`
	Sets     []SyncSet     `json:"sets"`
}

// SyncResponse lists the ids the server accepted. Ids absent from it were not accepted.
type SyncResponse struct {
	SyncedSessions []string `json:"synced_sessions"`
	SyncedSets     []string `json:"synced_sets"`
	Errors         []string `json:"errors"`
}
