// Package mlops drives the managed machine learning control plane: training
// jobs, batch transform jobs, edge compilation and edge packaging. The Client
// interface keeps stage handlers testable; SageMaker is the production
// implementation.
package mlops
