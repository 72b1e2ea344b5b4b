package ingestwf

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/workflow"
)

// Registrar is satisfied by worker.Worker and the SDK test environment.
type Registrar interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register adds both workflows and every activity under their stable names.
func Register(r Registrar, acts *Activities) {
	r.RegisterWorkflowWithOptions(IngestWorkflow, workflow.RegisterOptions{Name: IngestWorkflowName})
	r.RegisterWorkflowWithOptions(RefreshViewsWorkflow, workflow.RegisterOptions{Name: RefreshWorkflowName})
	r.RegisterActivityWithOptions(acts.StartRun, activity.RegisterOptions{Name: ActivityStartRun})
	r.RegisterActivityWithOptions(acts.LoadParents, activity.RegisterOptions{Name: ActivityLoadParents})
	r.RegisterActivityWithOptions(acts.LoadObservations, activity.RegisterOptions{Name: ActivityLoadObservations})
	r.RegisterActivityWithOptions(acts.FinishRun, activity.RegisterOptions{Name: ActivityFinishRun})
	r.RegisterActivityWithOptions(acts.RefreshViews, activity.RegisterOptions{Name: ActivityRefreshViews})
}
