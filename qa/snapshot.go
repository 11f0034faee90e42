// Package qa адаптер выгрузки QA-системы: дерево локаций, статусы чек-листов
// и названия работ, уже собранные внешним слоем загрузки.
package qa

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"progressreport/classification"
	"progressreport/dataset"
	"progressreport/location"
)

// Колонки выгрузки QA-системы
const (
	ColumnLocationID   = "qiLocationId"
	ColumnParentID     = "qiParentId"
	ColumnName         = "name"
	ColumnActivitySeq  = "activitySeq"
	ColumnStatusName   = "statusName"
	ColumnActivityName = "activityName"
)

// Файлы выгрузки в каталоге снимка
const (
	LocationsFile  = "locations.json"
	StatusesFile   = "activity_statuses.json"
	ActivitiesFile = "activities.json"
)

// Occurrence выполнение работы на локации со статусом чек-листа
type Occurrence struct {
	ActivitySeq string `json:"activity_seq"`
	LocationID  string `json:"location_id"`
	Status      string `json:"status"`
}

// ActivityRecord запись о работе с закрытым чек-листом
type ActivityRecord struct {
	LocationID      string   `json:"location_id"`
	ActivitySeq     string   `json:"activity_seq"`
	Status          string   `json:"status"`
	RawActivityName string   `json:"raw_activity_name"`
	FullPath        string   `json:"full_path"`
	TowerName       string   `json:"tower_name"`
	TowerKey        string   `json:"tower_key"`
	Stages          []string `json:"stages,omitempty"`
}

// Snapshot неизменяемый снимок данных QA-системы на один прогон анализа
type Snapshot struct {
	Nodes         []location.Node
	Occurrences   []Occurrence
	ActivityNames map[string]string
}

// BuildSnapshot проверяет обязательные колонки трех таблиц и собирает снимок.
// Отсутствие колонки прерывает прогон с *dataset.MissingColumnError.
func BuildSnapshot(locations, statuses, activities *dataset.Table) (*Snapshot, error) {
	if err := locations.RequireColumns(ColumnLocationID, ColumnParentID, ColumnName); err != nil {
		return nil, err
	}
	if err := statuses.RequireColumns(ColumnActivitySeq, ColumnLocationID, ColumnStatusName); err != nil {
		return nil, err
	}
	if err := activities.RequireColumns(ColumnActivitySeq, ColumnActivityName); err != nil {
		return nil, err
	}
	if locations.Len() == 0 {
		return nil, ErrEmptySnapshot
	}

	s := &Snapshot{
		Nodes:         make([]location.Node, 0, locations.Len()),
		Occurrences:   make([]Occurrence, 0, statuses.Len()),
		ActivityNames: make(map[string]string, activities.Len()),
	}

	for _, row := range locations.Rows {
		id := locations.Value(row, ColumnLocationID)
		if id == "" {
			continue
		}
		s.Nodes = append(s.Nodes, location.Node{
			ID:       id,
			ParentID: locations.Value(row, ColumnParentID),
			Name:     locations.Value(row, ColumnName),
		})
	}

	for _, row := range statuses.Rows {
		s.Occurrences = append(s.Occurrences, Occurrence{
			ActivitySeq: statuses.Value(row, ColumnActivitySeq),
			LocationID:  statuses.Value(row, ColumnLocationID),
			Status:      statuses.Value(row, ColumnStatusName),
		})
	}

	for _, row := range activities.Rows {
		seq := activities.Value(row, ColumnActivitySeq)
		if seq == "" {
			continue
		}
		s.ActivityNames[seq] = activities.Value(row, ColumnActivityName)
	}

	return s, nil
}

// LoadSnapshotJSON читает три JSON выгрузки из каталога.
// Файл содержит массив объектов либо объект с массивом в поле "data" или "items".
func LoadSnapshotJSON(dir string) (*Snapshot, error) {
	docs := make([][]byte, 0, 3)
	for _, name := range []string{LocationsFile, StatusesFile, ActivitiesFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSnapshotFile, err)
		}
		docs = append(docs, data)
	}
	return ParseSnapshotJSON(docs[0], docs[1], docs[2])
}

// ParseSnapshotJSON собирает снимок из содержимого трех JSON выгрузок
func ParseSnapshotJSON(locations, statuses, activities []byte) (*Snapshot, error) {
	tables := make([]*dataset.Table, 0, 3)
	for i, data := range [][]byte{locations, statuses, activities} {
		name := strings.TrimSuffix([]string{LocationsFile, StatusesFile, ActivitiesFile}[i], ".json")
		t, err := decodeJSONTable(name, data)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return BuildSnapshot(tables[0], tables[1], tables[2])
}

func decodeJSONTable(name string, data []byte) (*dataset.Table, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		var wrapped map[string]json.RawMessage
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotFile, name, err)
		}
		raw, ok := wrapped["data"]
		if !ok {
			raw, ok = wrapped["items"]
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s: no data array", ErrSnapshotFile, name)
		}
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotFile, name, err)
		}
	}
	return dataset.FromRecords(name, records), nil
}

// CompletedRecords отбирает выполнения со статусом completedStatus (без учета регистра)
// и дополняет их путем локации, башней и этапами. stages может быть nil.
func (s *Snapshot) CompletedRecords(resolver *location.Resolver, towers *location.TowerExtractor, stages *classification.StageClassifier, completedStatus string) []ActivityRecord {
	logger := slog.Default().With("component", "qa_snapshot")

	var (
		records     []ActivityRecord
		missingName int
	)
	for _, o := range s.Occurrences {
		if !strings.EqualFold(o.Status, completedStatus) {
			continue
		}

		name, ok := s.ActivityNames[o.ActivitySeq]
		if !ok {
			missingName++
		}

		segments := resolver.Segments(o.LocationID)
		path := strings.Join(segments, location.PathSeparator)
		towerName := towers.TowerName(segments)

		rec := ActivityRecord{
			LocationID:      o.LocationID,
			ActivitySeq:     o.ActivitySeq,
			Status:          o.Status,
			RawActivityName: name,
			FullPath:        path,
			TowerName:       towerName,
			TowerKey:        location.CanonicalKey(towerName),
		}
		if stages != nil {
			rec.Stages = stages.Stages(path)
		}
		records = append(records, rec)
	}

	if missingName > 0 {
		logger.Warn("Completed occurrences without activity name", "count", missingName)
	}
	logger.Info("Completed QA records prepared",
		"occurrences", len(s.Occurrences),
		"completed", len(records))
	return records
}
