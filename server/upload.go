package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"progressreport/analysis"
	"progressreport/dataset"
	"progressreport/qa"
	apperrors "progressreport/server/errors"
	"progressreport/tracker"
)

// maxUploadMemory объем multipart формы в памяти, остальное пишется во временные файлы
const maxUploadMemory = 32 << 20

// Поля multipart формы
const (
	fieldVariant    = "variant"
	fieldTowers     = "towers"
	fieldTower      = "tower"
	fieldTracker    = "tracker"
	fieldLocations  = "locations"
	fieldStatuses   = "statuses"
	fieldActivities = "activities"
)

// analysisRequest JSON тело запроса анализа
type analysisRequest struct {
	Variant string   `json:"variant"`
	Towers  []string `json:"towers"`
	QA      struct {
		Locations  json.RawMessage `json:"locations"`
		Statuses   json.RawMessage `json:"statuses"`
		Activities json.RawMessage `json:"activities"`
	} `json:"qa"`
	// Tracker строки трекера по башням
	Tracker map[string][]map[string]any `json:"tracker"`
}

// parseAnalysisInput собирает вход анализа из multipart формы или JSON тела
func (s *Server) parseAnalysisInput(c *gin.Context) (analysis.Input, error) {
	var (
		in  analysis.Input
		err error
	)
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		in, err = parseMultipartInput(c)
	} else {
		in, err = parseJSONInput(c)
	}
	if err != nil {
		return analysis.Input{}, err
	}

	if in.Variant == "" {
		in.Variant = s.config.ProjectVariant
	}
	return in, nil
}

func parseJSONInput(c *gin.Context) (analysis.Input, error) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return analysis.Input{}, apperrors.NewValidationError("request body is not valid JSON", err)
	}
	if len(req.QA.Locations) == 0 || len(req.QA.Statuses) == 0 || len(req.QA.Activities) == 0 {
		return analysis.Input{}, apperrors.NewValidationError("qa.locations, qa.statuses and qa.activities are required", nil)
	}

	snapshot, err := qa.ParseSnapshotJSON(req.QA.Locations, req.QA.Statuses, req.QA.Activities)
	if err != nil {
		return analysis.Input{}, err
	}

	towers := make([]string, 0, len(req.Tracker))
	for tower := range req.Tracker {
		towers = append(towers, tower)
	}
	sort.Strings(towers)

	var records []tracker.Record
	for _, tower := range towers {
		rows, err := tracker.FromTable(tower, dataset.FromRecords(tower, req.Tracker[tower]))
		if err != nil {
			return analysis.Input{}, err
		}
		records = append(records, rows...)
	}

	return analysis.Input{
		Variant:  req.Variant,
		Snapshot: snapshot,
		Tracker:  records,
		Towers:   req.Towers,
	}, nil
}

func parseMultipartInput(c *gin.Context) (analysis.Input, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return analysis.Input{}, apperrors.NewValidationError("failed to read multipart form", err)
	}

	docs := make([][]byte, 0, 3)
	for _, field := range []string{fieldLocations, fieldStatuses, fieldActivities} {
		data, err := readFormFile(form, field)
		if err != nil {
			return analysis.Input{}, err
		}
		docs = append(docs, data)
	}
	snapshot, err := qa.ParseSnapshotJSON(docs[0], docs[1], docs[2])
	if err != nil {
		return analysis.Input{}, err
	}

	records, err := readTrackerFile(form)
	if err != nil {
		return analysis.Input{}, err
	}

	in := analysis.Input{
		Variant:  formValue(form, fieldVariant),
		Snapshot: snapshot,
		Tracker:  records,
	}
	for _, tower := range strings.Split(formValue(form, fieldTowers), ",") {
		if tower = strings.TrimSpace(tower); tower != "" {
			in.Towers = append(in.Towers, tower)
		}
	}
	return in, nil
}

// readTrackerFile читает книгу трекера (лист на башню) или CSV одной башни
func readTrackerFile(form *multipart.Form) ([]tracker.Record, error) {
	header, err := formFileHeader(form, fieldTracker)
	if err != nil {
		return nil, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("failed to open tracker file", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx", ".xlsm":
		return tracker.ReadWorkbook(file)
	case ".csv":
		tower := formValue(form, fieldTower)
		if tower == "" {
			return nil, apperrors.NewValidationError("tower is required for a CSV tracker export", nil)
		}
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, apperrors.NewValidationError("failed to read tracker file", err)
		}
		return tracker.ParseCSV(data, tower)
	}
	return nil, apperrors.NewValidationError(
		fmt.Sprintf("unsupported tracker file %q: expected .xlsx or .csv", header.Filename), nil)
}

func readFormFile(form *multipart.Form, field string) ([]byte, error) {
	header, err := formFileHeader(form, field)
	if err != nil {
		return nil, err
	}
	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("failed to open "+field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewValidationError("failed to read "+field, err)
	}
	return data, nil
}

func formFileHeader(form *multipart.Form, field string) (*multipart.FileHeader, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("file field %q is required", field), nil)
	}
	return files[0], nil
}

func formValue(form *multipart.Form, field string) string {
	if values := form.Value[field]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}
