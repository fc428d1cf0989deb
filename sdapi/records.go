package sdapi

import (
	"encoding/json"
	"fmt"
)

// Record types mirror the JSON the server returns.
// Fields the client never reads are left out; the raw map is kept on every handle.

type UserRecord struct {
	Email     string `json:"email"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"isAdmin"`
}

type WorkspaceRecord struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type WorkspaceUserRecord struct {
	Email     string `json:"email"`
	CanRead   bool   `json:"can_read"`
	CanWrite  bool   `json:"can_write"`
	CanDelete bool   `json:"can_delete"`
}

type DatasetRecord struct {
	ID          ID               `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Author      string           `json:"author"`
	Datasource  DatasourceRecord `json:"datasource"`
}

type DatasourceRecord struct {
	CurrentRevision interface{} `json:"currentRevision"`
}

type EntityRecord struct {
	ID           ID          `json:"id"`
	InternalName string      `json:"internalname"`
	DisplayName  string      `json:"displayName"`
	Description  string      `json:"description"`
	CountOfRows  json.Number `json:"countOfRows"`
}

type TagRecord struct {
	ID         ID     `json:"id"`
	Title      string `json:"title"`
	Annotation string `json:"annotation"`
}

type OntologyRecord struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type ExperimentRecord struct {
	ExperimentID     ID         `json:"experiment_id"`
	Name             string     `json:"name"`
	ArtifactLocation string     `json:"artifact_location"`
	LifecycleStage   string     `json:"lifecycle_stage"`
	Tags             []KeyValue `json:"tags"`
}

// WorkspaceTag returns the value of the workspace_id tag, if the experiment has one.
func (e ExperimentRecord) WorkspaceTag() (string, bool) {
	for _, t := range e.Tags {
		if t.Key == "workspace_id" {
			return t.Value, true
		}
	}
	return "", false
}

type RunRecord struct {
	Info RunInfo `json:"info"`
}

type RunInfo struct {
	RunID        ID     `json:"run_id"`
	ExperimentID ID     `json:"experiment_id"`
	Status       string `json:"status"`
	ArtifactURI  string `json:"artifact_uri"`
}

type ModelRecord struct {
	Name    string      `json:"name"`
	RunID   ID          `json:"run_id"`
	Status  string      `json:"status"`
	Version interface{} `json:"version"`
	Stage   string      `json:"stage"`
}

// NotebookRef identifies a notebook created from an experiment.
// Notebooks live under a dataset.
type NotebookRef struct {
	ID        string `json:"id"`
	DatasetID string `json:"dataset"`
}

type Stats struct {
	Labels struct {
		En []string `json:"en"`
	} `json:"labels"`
	Values []json.Number `json:"values"`
}

type Health struct {
	Components []Component `json:"components"`
}

type Component struct {
	Name    string `json:"name"`
	IsAlive bool   `json:"isAlive"`
}

// Dead lists the components that reported themselves as not alive.
func (h Health) Dead() []Component {
	var dead []Component
	for _, c := range h.Components {
		if !c.IsAlive {
			dead = append(dead, c)
		}
	}
	return dead
}

// Triple is one row of a SPARQL select over an ontology graph.
type Triple struct {
	Subject   string
	Predicate string
	Object    string
}

// Annotation is one ontology term returned by a completion search.
type Annotation struct {
	Text  string `json:"text"`
	Value string `json:"value"`
	Graph string `json:"graph"`
}

// DecodeInto converts a decoded JSON value (maps, slices, json.Number) into a typed record.
//
// Errors:
//
//    - sedar-error-serialization -- the value does not fit the record
func DecodeInto(v interface{}, into interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return ErrorSerialization("re-encoding response", err)
	}
	if err := json.Unmarshal(b, into); err != nil {
		return ErrorSerialization(fmt.Sprintf("decoding %T", into), err)
	}
	return nil
}
