package workflow

import (
	"windsentry/internal/queue"
	"windsentry/internal/stage"
)

// StageSet bundles the concrete pipeline handlers the manager orchestrates.
type StageSet struct {
	Preprocessor stage.Handler
	Uploader     stage.Handler
	Trainer      stage.Handler
	Evaluator    stage.Handler
	Compiler     stage.Handler
	Packager     stage.Handler
	Deployer     stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
// Stages with a nil handler are skipped, which lets partial pipelines run in
// tests; in production all seven handlers are wired.
func (m *Manager) ConfigureStages(set StageSet) {
	var stages []pipelineStage

	if set.Preprocessor != nil {
		stages = append(stages, pipelineStage{
			name:             "preprocessor",
			handler:          set.Preprocessor,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusPreprocessing,
			doneStatus:       queue.StatusPreprocessed,
		})
	}
	if set.Uploader != nil {
		stages = append(stages, pipelineStage{
			name:             "uploader",
			handler:          set.Uploader,
			startStatus:      queue.StatusPreprocessed,
			processingStatus: queue.StatusUploading,
			doneStatus:       queue.StatusUploaded,
		})
	}
	if set.Trainer != nil {
		stages = append(stages, pipelineStage{
			name:             "trainer",
			handler:          set.Trainer,
			startStatus:      queue.StatusUploaded,
			processingStatus: queue.StatusTraining,
			doneStatus:       queue.StatusTrained,
		})
	}
	if set.Evaluator != nil {
		stages = append(stages, pipelineStage{
			name:             "evaluator",
			handler:          set.Evaluator,
			startStatus:      queue.StatusTrained,
			processingStatus: queue.StatusEvaluating,
			doneStatus:       queue.StatusEvaluated,
		})
	}
	if set.Compiler != nil {
		stages = append(stages, pipelineStage{
			name:             "compiler",
			handler:          set.Compiler,
			startStatus:      queue.StatusEvaluated,
			processingStatus: queue.StatusCompiling,
			doneStatus:       queue.StatusCompiled,
		})
	}
	if set.Packager != nil {
		stages = append(stages, pipelineStage{
			name:             "packager",
			handler:          set.Packager,
			startStatus:      queue.StatusCompiled,
			processingStatus: queue.StatusPackaging,
			doneStatus:       queue.StatusPackaged,
		})
	}
	if set.Deployer != nil {
		stages = append(stages, pipelineStage{
			name:             "deployer",
			handler:          set.Deployer,
			startStatus:      queue.StatusPackaged,
			processingStatus: queue.StatusDeploying,
			doneStatus:       queue.StatusCompleted,
		})
	}

	stageByStart := make(map[queue.Status]pipelineStage, len(stages))
	statusOrder := make([]queue.Status, 0, len(stages))
	processing := make([]queue.Status, 0, len(stages))
	seenProcessing := make(map[queue.Status]struct{}, len(stages))
	for _, stg := range stages {
		stageByStart[stg.startStatus] = stg
		statusOrder = append(statusOrder, stg.startStatus)
		if stg.processingStatus != "" {
			if _, ok := seenProcessing[stg.processingStatus]; !ok {
				processing = append(processing, stg.processingStatus)
				seenProcessing[stg.processingStatus] = struct{}{}
			}
		}
	}

	m.mu.Lock()
	m.stages = stages
	m.stageByStart = stageByStart
	m.statusOrder = statusOrder
	m.processingStatuses = processing
	m.mu.Unlock()
}

func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}
