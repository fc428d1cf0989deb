package sedar

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/warptools/sedar/pkg/logging"
	"github.com/warptools/sedar/pkg/resource"
	"github.com/warptools/sedar/sdapi"
)

// Experiment is a snapshot of one MLflow experiment.
// MLflow has no endpoint for a single experiment, so handles are built from the listing.
type Experiment struct {
	*resource.Resource[sdapi.ExperimentRecord]
	c *Client

	Name             string
	ArtifactLocation string
}

func (c *Client) newExperiment(wid string, content map[string]interface{}) (*Experiment, error) {
	id, err := requireID(content, "experiment_id", "experiment listing")
	if err != nil {
		return nil, err
	}
	r, err := resource.New(experimentKind, content, wid, id)
	if err != nil {
		return nil, err
	}
	return &Experiment{
		Resource:         r,
		c:                c,
		Name:             r.Value.Name,
		ArtifactLocation: r.Value.ArtifactLocation,
	}, nil
}

func (e *Experiment) WorkspaceID() string { return e.IDs()[0] }

// Experiments lists the experiments belonging to the workspace.
// Experiments without a workspace tag are listed in every workspace.
//
// Errors:
//
//    - sedar-error-request-failed -- the listing could not be fetched
//    - sedar-error-serialization -- the listing has an unexpected shape
func (w *Workspace) Experiments(ctx context.Context) ([]*Experiment, error) {
	res, err := w.c.tr.Get(w.c.ctx(ctx), "/api/v1/mlflow/listExperiments", nil)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("listing experiments", err)
	}
	records, err := objects(res, "experiments")
	if err != nil {
		return nil, err
	}
	out := make([]*Experiment, 0, len(records))
	for _, rec := range records {
		exp, err := w.c.newExperiment(w.ID(), rec)
		if err != nil {
			return nil, err
		}
		if tag, tagged := exp.Value.WorkspaceTag(); tagged && tag != w.ID() {
			continue
		}
		out = append(out, exp)
	}
	return out, nil
}

// Experiment finds one experiment of the workspace.
//
// Errors:
//
//    - sedar-error-not-found -- the workspace has no such experiment
//    - sedar-error-request-failed -- the listing could not be fetched
//    - sedar-error-serialization -- the listing has an unexpected shape
func (w *Workspace) Experiment(ctx context.Context, id string) (*Experiment, error) {
	all, err := w.Experiments(ctx)
	if err != nil {
		return nil, err
	}
	for _, exp := range all {
		if exp.ID() == id {
			return exp, nil
		}
	}
	logging.Ctx(ctx).Error("", "The experiment details for experiment %q could not be retrieved.", id)
	return nil, sdapi.ErrorNotFound("experiment", id)
}

// CreateExperiment creates an MLflow experiment tagged with this workspace.
//
// Errors:
//
//    - sedar-error-request-failed -- the server refused to create the experiment
//    - sedar-error-serialization -- the response does not name the new experiment
//    - sedar-error-not-found -- the new experiment is not listed
func (w *Workspace) CreateExperiment(ctx context.Context, title string) (*Experiment, error) {
	ctx = w.c.ctx(ctx)
	res, err := w.c.tr.Post(ctx, "/api/v1/mlflow/createExperiment", map[string]string{
		"name":         title,
		"workspace_id": w.ID(),
	})
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("creating experiment "+title, err)
	}
	obj, err := res.Object()
	if err != nil {
		return nil, err
	}
	id, err := requireID(obj, "experiment_id", "experiment creation")
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info("", "The experiment %q was created successfully.", title)
	return w.Experiment(ctx, id)
}

// RegisteredModels lists the models registered from the workspace's runs.
//
// Errors:
//
//    - sedar-error-request-failed -- the listing could not be fetched
//    - sedar-error-serialization -- the listing has an unexpected shape
func (w *Workspace) RegisteredModels(ctx context.Context) ([]*ExperimentModel, error) {
	return w.c.registeredModels(w.c.ctx(ctx), w.ID())
}

func (c *Client) registeredModels(ctx context.Context, wid string) ([]*ExperimentModel, error) {
	res, err := c.tr.Get(ctx, "/api/v1/mlflow/"+wid+"/listRegisteredModels", nil)
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("listing registered models", err)
	}
	records, err := objects(res, "models")
	if err != nil {
		return nil, err
	}
	out := make([]*ExperimentModel, 0, len(records))
	for _, rec := range records {
		m, err := c.newModel(wid, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Delete removes the experiment. It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-request-failed -- the server did not delete the experiment
func (e *Experiment) Delete(ctx context.Context) (bool, error) {
	ctx = e.c.ctx(ctx)
	_, err := e.c.tr.Post(ctx, "/api/v1/mlflow/deleteExperiment", map[string]string{
		"experiment_id": e.ID(),
	})
	if err != nil {
		return false, sdapi.ErrorRequestFailed("deleting experiment "+e.ID(), err)
	}
	logging.Ctx(ctx).Info("", "The experiment with ID %q was deleted successfully.", e.ID())
	return true, nil
}

// Runs lists the experiment's runs.
//
// Errors:
//
//    - sedar-error-request-failed -- the runs could not be fetched
//    - sedar-error-serialization -- a run has an unexpected shape
func (e *Experiment) Runs(ctx context.Context) ([]*ExperimentRun, error) {
	ctx = e.c.ctx(ctx)
	res, err := e.c.tr.Post(ctx, "/api/v1/mlflow/searchRuns", map[string]string{
		"experiment_id": e.ID(),
	})
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("listing runs of experiment "+e.ID(), err)
	}
	records, err := objects(res, "runs")
	if err != nil {
		return nil, err
	}
	out := make([]*ExperimentRun, 0, len(records))
	for _, rec := range records {
		var run sdapi.RunRecord
		if err := sdapi.DecodeInto(rec, &run); err != nil {
			return nil, err
		}
		if run.Info.RunID == "" {
			return nil, sdapi.ErrorSerialization("decoding run", errors.New("no info.run_id"))
		}
		r, err := resource.New(runKind, rec, e.WorkspaceID(), e.ID(), run.Info.RunID.String())
		if err != nil {
			return nil, err
		}
		out = append(out, &ExperimentRun{Resource: r, c: e.c})
	}
	logging.Ctx(ctx).Info("", "The runs for the experiment with ID %q were retrieved successfully.", e.ID())
	return out, nil
}

// NotebookRequest asks the server to generate a Jupyter notebook for an experiment.
type NotebookRequest struct {
	Method      string
	Model       string
	Datasets    []*Dataset
	Title       string
	Description string
	IsPublic    bool
	WithDeploy  bool
}

// CreateJupyterCode generates a notebook for the experiment and returns where it was stored.
//
// Errors:
//
//    - sedar-error-request-failed -- the server did not generate the notebook
//    - sedar-error-serialization -- the response does not name the notebook
func (e *Experiment) CreateJupyterCode(ctx context.Context, req NotebookRequest) (sdapi.NotebookRef, error) {
	ctx = e.c.ctx(ctx)
	refs := make([]string, 0, len(req.Datasets))
	for _, d := range req.Datasets {
		refs = append(refs, d.notebookDatasetRef())
	}
	datasets, err := json.Marshal(refs)
	if err != nil {
		return sdapi.NotebookRef{}, sdapi.ErrorSerialization("encoding notebook datasets", err)
	}
	res, err := e.c.tr.Post(ctx, "/api/v1/mlflow/createJupyterCode", map[string]interface{}{
		"workspace_id":  e.WorkspaceID(),
		"session_id":    e.c.tr.SessionID(),
		"experiment_id": e.ID(),
		"method":        req.Method,
		"model":         req.Model,
		"datasets":      string(datasets),
		"title":         req.Title,
		"description":   req.Description,
		"is_public":     req.IsPublic,
		"withDeploy":    req.WithDeploy,
	})
	if err != nil {
		return sdapi.NotebookRef{}, sdapi.ErrorRequestFailed("creating Jupyter code for experiment "+e.ID(), err)
	}
	var ref sdapi.NotebookRef
	if err := res.Decode(&ref); err != nil {
		return sdapi.NotebookRef{}, err
	}
	if ref.ID == "" {
		return sdapi.NotebookRef{}, sdapi.ErrorSerialization("decoding notebook reference", errors.New("no id"))
	}
	logging.Ctx(ctx).Info("", "The Jupyter code for experiment %q was created successfully.", e.ID())
	return ref, nil
}

// DeployRun registers the run's model under modelName.
// It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-request-failed -- the server did not deploy the run
func (e *Experiment) DeployRun(ctx context.Context, run *ExperimentRun, modelName string) (bool, error) {
	ctx = e.c.ctx(ctx)
	_, err := e.c.tr.Post(ctx, "/api/v1/mlflow/deployRun", map[string]string{
		"workspace_id": e.WorkspaceID(),
		"run_id":       run.ID(),
		"artifact_uri": e.ArtifactLocation,
		"model_name":   modelName,
	})
	if err != nil {
		return false, sdapi.ErrorRequestFailed("deploying run "+run.ID(), err)
	}
	logging.Ctx(ctx).Info("", "The run %q was deployed successfully.", modelName)
	return true, nil
}

// ExperimentRun is one run of an experiment, as listed by the server.
type ExperimentRun struct {
	*resource.Resource[sdapi.RunRecord]
	c *Client
}

func (r *ExperimentRun) ExperimentID() string { return r.IDs()[1] }

// AddToNotebook attaches the run to a generated notebook.
// It returns true or an error, never false.
//
// Errors:
//
//    - sedar-error-request-failed -- the server did not attach the run
func (r *ExperimentRun) AddToNotebook(ctx context.Context, nb sdapi.NotebookRef) (bool, error) {
	ctx = r.c.ctx(ctx)
	_, err := r.c.tr.Post(ctx, "/api/v1/mlflow/deployRun", map[string]string{
		"notebook_id":   nb.ID,
		"run_id":        r.ID(),
		"experiment_id": r.ExperimentID(),
	})
	if err != nil {
		return false, sdapi.ErrorRequestFailed("adding run "+r.ID()+" to notebook "+nb.ID, err)
	}
	logging.Ctx(ctx).Info("", "The run %q was added to the notebook %q successfully.", r.ID(), nb.ID)
	return true, nil
}

// ExperimentModel is one registered model version.
type ExperimentModel struct {
	*resource.Resource[sdapi.ModelRecord]
	c *Client

	Name    string
	RunID   string
	Status  string
	Version interface{}
	Stage   string
}

func (c *Client) newModel(wid string, content map[string]interface{}) (*ExperimentModel, error) {
	name, err := requireID(content, "name", "registered model listing")
	if err != nil {
		return nil, err
	}
	r, err := resource.New(modelKind, content, wid, name)
	if err != nil {
		return nil, err
	}
	return &ExperimentModel{
		Resource: r,
		c:        c,
		Name:     r.Value.Name,
		RunID:    r.Value.RunID.String(),
		Status:   r.Value.Status,
		Version:  content["version"],
		Stage:    r.Value.Stage,
	}, nil
}

// Transition moves the model to stage (e.g. "Staging", "Production") and
// returns the model as registered afterwards.
//
// Errors:
//
//    - sedar-error-request-failed -- the server rejected the transition, or the models could not be listed
//    - sedar-error-not-found -- the model is no longer registered
//    - sedar-error-serialization -- the listing has an unexpected shape
func (m *ExperimentModel) Transition(ctx context.Context, stage string) (*ExperimentModel, error) {
	ctx = m.c.ctx(ctx)
	_, err := m.c.tr.Post(ctx, "/api/v1/mlflow/handleTransition", map[string]interface{}{
		"name":    m.Name,
		"version": m.Version,
		"stage":   stage,
	})
	if err != nil {
		return nil, sdapi.ErrorRequestFailed("transitioning model "+m.Name, err)
	}
	logging.Ctx(ctx).Info("", "The model transition was executed successfully.")
	models, err := m.c.registeredModels(ctx, m.IDs()[0])
	if err != nil {
		return nil, err
	}
	for _, other := range models {
		if other.Name == m.Name {
			return other, nil
		}
	}
	return nil, sdapi.ErrorNotFound("registered model", m.Name)
}
